package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/handlescan/handlescan/internal/catalog"
	"github.com/handlescan/handlescan/internal/config"
	"github.com/handlescan/handlescan/internal/history"
	"github.com/handlescan/handlescan/internal/model"
	"github.com/handlescan/handlescan/internal/notify"
)

func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates scan command", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if cmd == nil {
			t.Fatal("NewScanCmd() returned nil")
		}
		if cmd.Use != "scan [username...]" {
			t.Errorf("Use = %v, want scan [username...]", cmd.Use)
		}
		if cmd.Short == "" {
			t.Error("Short description is empty")
		}
		if cmd.RunE == nil {
			t.Error("RunE is nil")
		}
	})

	t.Run("registers catalog, probe, and report flags", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			shorthand string
			defValue  string
		}{
			{"catalog", "", ""},
			{"catalog-url", "", config.DefaultCatalogURL},
			{"refresh-catalog", "", "false"},
			{"site", "s", "[]"},
			{"nsfw", "", "false"},
			{"timeout", "t", "1m0s"},
			{"workers", "w", "20"},
			{"rate", "", "0"},
			{"user-agent", "", ""},
			{"proxy", "", ""},
			{"tor", "", "false"},
			{"unique-tor", "", "false"},
			{"external-tor", "e", ""},
			{"tor-control", "", ""},
			{"tor-control-password", "", ""},
			{"tor-control-cookie", "", ""},
			{"tor-timeout", "T", "3m0s"},
			{"config", "c", ""},
			{"format", "f", config.FormatText},
			{"output", "o", ""},
			{"print-all", "a", "false"},
			{"no-color", "", "false"},
			{"no-history", "", "false"},
		}

		cmd := NewScanCmd()
		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("flag %q is not registered", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %v, want %v", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("flag %q default = %v, want %v", tt.name, flag.DefValue, tt.defValue)
			}
		}
	})

	t.Run("does not have a db-dir flag", func(t *testing.T) {
		t.Parallel()

		// The history database lives in the XDG data directory; there is
		// no flag to relocate it.
		cmd := NewScanCmd()
		if cmd.Flags().Lookup("db-dir") != nil {
			t.Error("db-dir flag should not be registered")
		}
	})
}

func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("defaults to false without a root command", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if getVerboseFlag(cmd) {
			t.Error("getVerboseFlag() = true, want false")
		}
	})

	t.Run("falls back to the root persistent flag", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("failed to set verbose flag: %v", err)
		}

		scanCmd, _, err := root.Find([]string{"scan"})
		if err != nil {
			t.Fatalf("failed to find scan command: %v", err)
		}
		if !getVerboseFlag(scanCmd) {
			t.Error("getVerboseFlag() = false, want true")
		}
	})
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("default configuration", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if len(cfg.Usernames) != 1 || cfg.Usernames[0] != "alice" {
			t.Errorf("Usernames = %v, want [alice]", cfg.Usernames)
		}
		if cfg.Timeout != config.DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", cfg.Timeout, config.DefaultTimeout)
		}
		if cfg.Workers != config.DefaultWorkers {
			t.Errorf("Workers = %v, want %v", cfg.Workers, config.DefaultWorkers)
		}
		if cfg.CatalogURL != config.DefaultCatalogURL {
			t.Errorf("CatalogURL = %v, want %v", cfg.CatalogURL, config.DefaultCatalogURL)
		}
		if cfg.Format != config.FormatText {
			t.Errorf("Format = %v, want %v", cfg.Format, config.FormatText)
		}
		if cfg.UseTor || cfg.UseExternalTor || cfg.UniqueTor {
			t.Error("Tor should be disabled by default")
		}
		if !cfg.SaveHistory {
			t.Error("SaveHistory = false, want true")
		}
		if cfg.FileOptions == nil {
			t.Error("FileOptions is nil, want an empty config")
		}
	})

	t.Run("custom probe settings", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "timeout", "5s")
		mustSetFlag(t, cmd, "workers", "7")
		mustSetFlag(t, cmd, "rate", "2.5")
		mustSetFlag(t, cmd, "user-agent", "probe/1.0")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
		}
		if cfg.Workers != 7 {
			t.Errorf("Workers = %v, want 7", cfg.Workers)
		}
		if cfg.Rate != 2.5 {
			t.Errorf("Rate = %v, want 2.5", cfg.Rate)
		}
		if cfg.UserAgent != "probe/1.0" {
			t.Errorf("UserAgent = %v, want probe/1.0", cfg.UserAgent)
		}
	})

	t.Run("site filter and nsfw flag", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "site", "GitHub,GitLab")
		mustSetFlag(t, cmd, "nsfw", "true")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if len(cfg.Sites) != 2 || cfg.Sites[0] != "GitHub" || cfg.Sites[1] != "GitLab" {
			t.Errorf("Sites = %v, want [GitHub GitLab]", cfg.Sites)
		}
		if !cfg.IncludeNSFW {
			t.Error("IncludeNSFW = false, want true")
		}
	})

	t.Run("usernames are trimmed and NFC normalized", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		cfg, err := buildConfig(cmd, []string{"  Zoé  "})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if len(cfg.Usernames) != 1 || cfg.Usernames[0] != "Zoé" {
			t.Errorf("Usernames = %q, want [Zoé]", cfg.Usernames)
		}
	})

	t.Run("invalid username is rejected", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		_, err := buildConfig(cmd, []string{"bad/name"})
		if err == nil {
			t.Fatal("expected error for username with a slash")
		}
		if !strings.Contains(err.Error(), "invalid username") {
			t.Errorf("error = %v, want mention of invalid username", err)
		}
	})

	t.Run("several usernames in one invocation", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		cfg, err := buildConfig(cmd, []string{"alice", "bob", "carol"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if len(cfg.Usernames) != 3 {
			t.Errorf("Usernames = %v, want 3 entries", cfg.Usernames)
		}
	})

	t.Run("output file with several usernames is rejected", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "output", "report.json")

		_, err := buildConfig(cmd, []string{"alice", "bob"})
		if err == nil {
			t.Fatal("expected error for --output with two usernames")
		}
		if !strings.Contains(err.Error(), "single username") {
			t.Errorf("error = %v, want mention of single username", err)
		}
	})

	t.Run("unique-tor implies tor", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "unique-tor", "true")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if !cfg.UseTor {
			t.Error("UseTor = false, want true when unique-tor is set")
		}
		if !cfg.UniqueTor {
			t.Error("UniqueTor = false, want true")
		}
	})

	t.Run("no-history disables archiving", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "no-history", "true")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.SaveHistory {
			t.Error("SaveHistory = true, want false")
		}
	})
}

func TestBuildConfigWithExternalTor(t *testing.T) {
	t.Parallel()

	t.Run("external tor address implies tor", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "external-tor", "127.0.0.1:9150")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if !cfg.UseTor {
			t.Error("UseTor = false, want true")
		}
		if !cfg.UseExternalTor {
			t.Error("UseExternalTor = false, want true")
		}
		if cfg.TorProxyAddress != "127.0.0.1:9150" {
			t.Errorf("TorProxyAddress = %v, want 127.0.0.1:9150", cfg.TorProxyAddress)
		}
	})

	t.Run("control port settings pass through", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "external-tor", "127.0.0.1:9150")
		mustSetFlag(t, cmd, "tor-control", "127.0.0.1:9151")
		mustSetFlag(t, cmd, "tor-control-password", "hunter2")

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.TorControlAddress != "127.0.0.1:9151" {
			t.Errorf("TorControlAddress = %v, want 127.0.0.1:9151", cfg.TorControlAddress)
		}
		if cfg.TorControlPassword != "hunter2" {
			t.Errorf("TorControlPassword = %v, want hunter2", cfg.TorControlPassword)
		}
	})
}

func TestBuildConfigWithConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("valid config file", func(t *testing.T) {
		t.Parallel()

		configContent := `defaults:
  headers:
    Accept-Language: "en-US"
sites:
  GitHub:
    userAgent: "custom-agent"
  Broken:
    disabled: true
`
		configPath := filepath.Join(t.TempDir(), ".handlescan")
		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "config", configPath)

		cfg, err := buildConfig(cmd, []string{"alice"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.FileOptions == nil {
			t.Fatal("FileOptions is nil")
		}

		override := cfg.FileOptions.OverrideFor("GitHub")
		if override.UserAgent != "custom-agent" {
			t.Errorf("GitHub UserAgent = %v, want custom-agent", override.UserAgent)
		}
		if override.Headers["Accept-Language"] != "en-US" {
			t.Errorf("GitHub headers = %v, want defaults merged in", override.Headers)
		}

		disabled := cfg.FileOptions.DisabledSites()
		if len(disabled) != 1 || disabled[0] != "Broken" {
			t.Errorf("DisabledSites() = %v, want [Broken]", disabled)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".handlescan")
		if err := os.WriteFile(configPath, []byte("{invalid yaml"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "config", configPath)

		_, err := buildConfig(cmd, []string{"alice"})
		if err == nil {
			t.Fatal("expected error for invalid config file")
		}
		if !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("error = %v, want load failure", err)
		}
	})

	t.Run("explicitly named config file must exist", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		mustSetFlag(t, cmd, "config", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := buildConfig(cmd, []string{"alice"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
		if !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("error = %v, want configuration file not found", err)
		}
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("loads the local catalog without nsfw sites", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.CatalogPath = writeCatalogFixture(t)

		cat, err := loadCatalog(context.Background(), cfg)
		if err != nil {
			t.Fatalf("loadCatalog() error = %v", err)
		}

		names := cat.Names()
		if len(names) != 2 || names[0] != "ExampleHub" || names[1] != "QuietCorner" {
			t.Errorf("Names() = %v, want [ExampleHub QuietCorner]", names)
		}
	})

	t.Run("includes nsfw sites on request", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.CatalogPath = writeCatalogFixture(t)
		cfg.IncludeNSFW = true

		cat, err := loadCatalog(context.Background(), cfg)
		if err != nil {
			t.Fatalf("loadCatalog() error = %v", err)
		}
		if cat.Len() != 3 {
			t.Errorf("Len() = %v, want 3", cat.Len())
		}
	})

	t.Run("unknown site name fails the run", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.CatalogPath = writeCatalogFixture(t)
		cfg.Sites = []string{"Nonexistent"}

		_, err := loadCatalog(context.Background(), cfg)
		if !errors.Is(err, catalog.ErrUnknownSite) {
			t.Errorf("error = %v, want ErrUnknownSite", err)
		}
	})

	t.Run("selecting only an nsfw site leaves nothing to probe", func(t *testing.T) {
		t.Parallel()

		// The site filter resolves the name first; the NSFW filter then
		// drops the only selected site.
		cfg := config.NewConfig()
		cfg.CatalogPath = writeCatalogFixture(t)
		cfg.Sites = []string{"BareArchive"}

		_, err := loadCatalog(context.Background(), cfg)
		if err == nil {
			t.Fatal("expected error when every site is filtered out")
		}
		if !strings.Contains(err.Error(), "no sites left to probe") {
			t.Errorf("error = %v, want no sites left to probe", err)
		}
	})

	t.Run("disabled sites are dropped", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.CatalogPath = writeCatalogFixture(t)
		cfg.FileOptions = &config.File{
			Sites: map[string]config.SiteOverride{
				"ExampleHub": {Disabled: true},
			},
		}

		cat, err := loadCatalog(context.Background(), cfg)
		if err != nil {
			t.Fatalf("loadCatalog() error = %v", err)
		}

		names := cat.Names()
		if len(names) != 1 || names[0] != "QuietCorner" {
			t.Errorf("Names() = %v, want [QuietCorner]", names)
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	const catalogJSON = `{
  "SiteA": {
    "url": "https://a.test/{}",
    "urlMain": "https://a.test/",
    "errorType": "status_code",
    "headers": {"X-Probe": "base"}
  },
  "SiteB": {
    "url": "https://b.test/{}",
    "urlMain": "https://b.test/",
    "errorType": "status_code"
  }
}`

	parseCatalog := func(t *testing.T) *catalog.Catalog {
		t.Helper()
		cat, err := catalog.Parse(strings.NewReader(catalogJSON))
		if err != nil {
			t.Fatalf("failed to parse catalog: %v", err)
		}
		return cat
	}

	t.Run("nil file options pass the catalog through", func(t *testing.T) {
		t.Parallel()

		cat := parseCatalog(t)
		got, err := applyOverrides(cat, nil)
		if err != nil {
			t.Fatalf("applyOverrides() error = %v", err)
		}
		if got != cat {
			t.Error("expected the same catalog back")
		}
	})

	t.Run("disabled site is dropped", func(t *testing.T) {
		t.Parallel()

		fileOpts := &config.File{
			Sites: map[string]config.SiteOverride{
				"SiteA": {Disabled: true},
			},
		}

		got, err := applyOverrides(parseCatalog(t), fileOpts)
		if err != nil {
			t.Fatalf("applyOverrides() error = %v", err)
		}

		names := got.Names()
		if len(names) != 1 || names[0] != "SiteB" {
			t.Errorf("Names() = %v, want [SiteB]", names)
		}
	})

	t.Run("headers merge onto a copy", func(t *testing.T) {
		t.Parallel()

		cat := parseCatalog(t)
		fileOpts := &config.File{
			Sites: map[string]config.SiteOverride{
				"SiteA": {Headers: map[string]string{"Authorization": "Bearer tok"}},
			},
		}

		got, err := applyOverrides(cat, fileOpts)
		if err != nil {
			t.Fatalf("applyOverrides() error = %v", err)
		}

		d, ok := got.Get("SiteA")
		if !ok {
			t.Fatal("SiteA missing from the overridden catalog")
		}
		if d.Headers["X-Probe"] != "base" || d.Headers["Authorization"] != "Bearer tok" {
			t.Errorf("Headers = %v, want base and override merged", d.Headers)
		}

		// The loaded descriptor is shared across runs and must stay as it
		// was parsed.
		orig, _ := cat.Get("SiteA")
		if len(orig.Headers) != 1 {
			t.Errorf("source descriptor headers = %v, want only X-Probe", orig.Headers)
		}
	})

	t.Run("user agent override becomes a header", func(t *testing.T) {
		t.Parallel()

		fileOpts := &config.File{
			Sites: map[string]config.SiteOverride{
				"SiteB": {UserAgent: "probe/1.0"},
			},
		}

		got, err := applyOverrides(parseCatalog(t), fileOpts)
		if err != nil {
			t.Fatalf("applyOverrides() error = %v", err)
		}

		d, ok := got.Get("SiteB")
		if !ok {
			t.Fatal("SiteB missing from the overridden catalog")
		}
		if d.Headers["User-Agent"] != "probe/1.0" {
			t.Errorf("User-Agent header = %v, want probe/1.0", d.Headers["User-Agent"])
		}
	})

	t.Run("defaults apply to every site", func(t *testing.T) {
		t.Parallel()

		fileOpts := &config.File{
			Defaults: config.SiteOverride{
				Headers: map[string]string{"Accept-Language": "en-US"},
			},
		}

		got, err := applyOverrides(parseCatalog(t), fileOpts)
		if err != nil {
			t.Fatalf("applyOverrides() error = %v", err)
		}

		for _, name := range []string{"SiteA", "SiteB"} {
			d, ok := got.Get(name)
			if !ok {
				t.Fatalf("%s missing from the overridden catalog", name)
			}
			if d.Headers["Accept-Language"] != "en-US" {
				t.Errorf("%s headers = %v, want Accept-Language from defaults", name, d.Headers)
			}
		}
	})
}

func TestConsoleSink(t *testing.T) {
	t.Parallel()

	t.Run("text format streams to the console", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		if _, ok := consoleSink(cfg).(*notify.Console); !ok {
			t.Error("expected a console sink for the text format")
		}
	})

	t.Run("machine format on stdout is silent", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatJSON
		if _, ok := consoleSink(cfg).(model.NopSink); !ok {
			t.Error("expected a silent sink for JSON on stdout")
		}
	})

	t.Run("machine format to a file keeps the console stream", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatJSON
		cfg.OutputFile = "report.json"
		if _, ok := consoleSink(cfg).(*notify.Console); !ok {
			t.Error("expected a console sink when the report goes to a file")
		}
	})
}

func TestOutputReport(t *testing.T) {
	t.Parallel()

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatJSON
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var envelope struct {
			Version string     `json:"version"`
			Run     *model.Run `json:"run"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if envelope.Version != getVersion() {
			t.Errorf("version = %v, want %v", envelope.Version, getVersion())
		}
		if envelope.Run == nil || envelope.Run.Username != "alice" {
			t.Errorf("run = %+v, want username alice", envelope.Run)
		}
	})

	t.Run("csv report to file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatCSV
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.csv")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "ExampleHub") {
			t.Errorf("CSV report does not mention ExampleHub:\n%s", data)
		}
	})

	t.Run("markdown report to file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatMarkdown
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.md")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "alice") {
			t.Errorf("markdown report does not mention the username:\n%s", data)
		}
	})

	t.Run("text report to file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.txt")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		data, err := os.ReadFile(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "alice") {
			t.Errorf("text report does not mention the username:\n%s", data)
		}
	})

	t.Run("text on stdout is left to the console stream", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Errorf("outputReport() error = %v, want nil", err)
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = config.FormatJSON
		cfg.OutputFile = filepath.Join(t.TempDir(), "nested", "deeper", "report.json")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}
		if _, err := os.Stat(cfg.OutputFile); err != nil {
			t.Errorf("report file missing: %v", err)
		}
	})

	t.Run("report file is owner-readable only", func(t *testing.T) {
		t.Parallel()

		if runtime.GOOS == "windows" {
			t.Skip("file permissions work differently on Windows")
		}

		cfg := config.NewConfig()
		cfg.Format = config.FormatJSON
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")

		if err := outputReport(cfg, reportRunFixture("alice")); err != nil {
			t.Fatalf("outputReport() error = %v", err)
		}

		info, err := os.Stat(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to stat report: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("report permissions = %o, want 600", perm)
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	t.Run("known formats", func(t *testing.T) {
		t.Parallel()

		for _, format := range []string{
			config.FormatText,
			config.FormatCSV,
			config.FormatJSON,
			config.FormatMarkdown,
		} {
			cfg := config.NewConfig()
			cfg.Format = format

			writer, err := newReportWriter(cfg, io.Discard)
			if err != nil {
				t.Errorf("newReportWriter(%q) error = %v", format, err)
			}
			if writer == nil {
				t.Errorf("newReportWriter(%q) returned nil", format)
			}
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Format = "xml"

		_, err := newReportWriter(cfg, io.Discard)
		if !errors.Is(err, config.ErrUnknownFormat) {
			t.Errorf("error = %v, want ErrUnknownFormat", err)
		}
	})
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("nil database is a no-op", func(t *testing.T) {
		t.Parallel()

		if err := saveRun(context.Background(), nil, reportRunFixture("alice"), logger); err != nil {
			t.Errorf("saveRun() error = %v, want nil", err)
		}
	})

	t.Run("archives the run", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db, err := history.Open(t.TempDir(), history.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open history database: %v", err)
		}
		defer db.Close()

		if err := saveRun(ctx, db, reportRunFixture("alice"), logger); err != nil {
			t.Fatalf("saveRun() error = %v", err)
		}

		summaries, err := db.History(ctx, "alice")
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("History() returned %d runs, want 1", len(summaries))
		}
		if summaries[0].SiteCount != 2 || summaries[0].ClaimedCount != 1 {
			t.Errorf("summary = %+v, want 2 sites and 1 claimed", summaries[0])
		}
	})
}

func TestRunScanExternalTorUnreachable(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Usernames = []string{"alice"}
	cfg.CatalogPath = writeCatalogFixture(t)
	cfg.SaveHistory = false
	cfg.UseTor = true
	cfg.UseExternalTor = true
	cfg.TorProxyAddress = "127.0.0.1:1"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runScan(context.Background(), cfg, logger)
	if err == nil {
		t.Fatal("expected error for unreachable Tor proxy")
	}
	if !strings.Contains(err.Error(), "make sure Tor is running") {
		t.Errorf("error = %v, want Tor hint", err)
	}
}

func TestRunScanCmdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "no username",
			args:    []string{"scan"},
			wantErr: "no username specified",
		},
		{
			name:    "invalid username",
			args:    []string{"scan", "bad/name"},
			wantErr: "invalid username",
		},
		{
			name:    "proxy conflicts with tor",
			args:    []string{"scan", "--proxy", "socks5://127.0.0.1:9050", "--tor", "alice"},
			wantErr: "cannot be used together",
		},
		{
			name:    "unknown report format",
			args:    []string{"scan", "--format", "xml", "alice"},
			wantErr: "unknown report format",
		},
		{
			name:    "output with several usernames",
			args:    []string{"scan", "--output", "report.json", "alice", "bob"},
			wantErr: "single username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := NewRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)

			err := root.Execute()
			if err == nil {
				t.Fatalf("Execute(%v) succeeded, want error", tt.args)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// mustSetFlag sets a flag value, failing the test on error.
func mustSetFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("failed to set flag %s=%s: %v", name, value, err)
	}
}

// writeCatalogFixture writes a three-site catalog to a temp file and returns
// its path. BareArchive is flagged NSFW.
func writeCatalogFixture(t *testing.T) string {
	t.Helper()

	const data = `{
  "ExampleHub": {
    "url": "https://examplehub.test/u/{}",
    "urlMain": "https://examplehub.test/",
    "errorType": "status_code",
    "username_claimed": "alice",
    "username_unclaimed": "noonewouldeverusethis7"
  },
  "QuietCorner": {
    "url": "https://quietcorner.test/{}",
    "urlMain": "https://quietcorner.test/",
    "errorType": "message",
    "errorMsg": "Not Found",
    "username_claimed": "alice",
    "username_unclaimed": "noonewouldeverusethis7"
  },
  "BareArchive": {
    "url": "https://barearchive.test/{}",
    "urlMain": "https://barearchive.test/",
    "errorType": "status_code",
    "isNSFW": true
  }
}`

	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write catalog fixture: %v", err)
	}
	return path
}

// reportRunFixture builds a two-site run with one claimed result.
func reportRunFixture(username string) *model.Run {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	results := map[string]model.QueryResult{
		"ExampleHub": {
			Username: username,
			SiteName: "ExampleHub",
			UserURL:  "https://examplehub.test/u/" + username,
			Status:   model.StatusClaimed,
			Elapsed:  120 * time.Millisecond,
		},
		"QuietCorner": {
			Username: username,
			SiteName: "QuietCorner",
			UserURL:  "https://quietcorner.test/" + username,
			Status:   model.StatusAvailable,
			Elapsed:  80 * time.Millisecond,
		},
	}
	return model.NewRun(username, started, 200*time.Millisecond,
		[]string{"ExampleHub", "QuietCorner"}, results)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/handlescan/handlescan/internal/catalog"
	"github.com/handlescan/handlescan/internal/config"
	"github.com/handlescan/handlescan/internal/engine"
	"github.com/handlescan/handlescan/internal/history"
	"github.com/handlescan/handlescan/internal/log"
	"github.com/handlescan/handlescan/internal/model"
	"github.com/handlescan/handlescan/internal/notify"
	"github.com/handlescan/handlescan/internal/report"
	"github.com/handlescan/handlescan/internal/tor"
	"github.com/handlescan/handlescan/internal/transport"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [username...]",
		Short: "Check usernames across social networks",
		Long: `Scan probes every catalog site for the given usernames.

Each site receives exactly one HTTP request, and the response is classified
by the site's detection rule:
- Claimed:   an account with that name exists
- Available: no account with that name was found
- Unknown:   the probe failed or the response fit no rule
- Illegal:   the site rejects the username's format outright

Examples:
  # Check one username
  handlescan scan alice

  # Check several usernames in one invocation
  handlescan scan alice bob carol

  # Probe only specific sites
  handlescan scan --site GitHub --site GitLab alice

  # Route probes through an embedded Tor daemon with a fresh circuit per probe
  handlescan scan --tor --unique-tor alice

  # Use a Tor daemon you already run
  handlescan scan --external-tor 127.0.0.1:9050 alice

  # Write a JSON report to a file
  handlescan scan --format json --output report.json alice

Configuration file (.handlescan) example:
  sites:
    GitHub:
      headers:
        Authorization: "Bearer token"
    SomeBrokenSite:
      disabled: true`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addCatalogFlags(cmd)
	addProbeFlags(cmd)

	// Report flags
	cmd.Flags().StringP("format", "f", config.FormatText,
		"Report format: text, csv, json, or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file path (creates directories if needed)")
	cmd.Flags().BoolP("print-all", "a", false,
		"Show sites where the username was not found too")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not archive this run in the history database")

	return cmd
}

// addCatalogFlags registers the catalog source and filter flags shared by
// commands that load the site catalog.
func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("catalog", "",
		"Load the site catalog from a local JSON file")
	cmd.Flags().String("catalog-url", config.DefaultCatalogURL,
		"Fetch the site catalog from this URL when no cached copy exists")
	cmd.Flags().Bool("refresh-catalog", false,
		"Re-download the catalog even when a cached copy exists")
	cmd.Flags().StringSliceP("site", "s", nil,
		"Probe only the named sites (repeatable)")
	cmd.Flags().Bool("nsfw", false,
		"Include sites flagged NSFW")
}

// addProbeFlags registers the probe pacing, transport, and config-file flags
// shared by commands that dispatch probes.
func addProbeFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Budget for each individual probe")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Maximum number of concurrent probes")
	cmd.Flags().Float64("rate", 0,
		"Maximum probes per second across all workers (0 disables pacing)")
	cmd.Flags().String("user-agent", "",
		"User-Agent header for probes (default: a desktop browser string)")

	cmd.Flags().String("proxy", "",
		"Route probes through this proxy (socks5://host:port or http://host:port)")
	cmd.Flags().Bool("tor", false,
		"Route probes through an embedded Tor daemon")
	cmd.Flags().Bool("unique-tor", false,
		"Request a fresh Tor circuit after every probe (implies --tor)")
	cmd.Flags().StringP("external-tor", "e", "",
		"Use the Tor daemon already listening at this SOCKS address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("tor-control", "",
		"Control port address of the external Tor daemon (e.g., 127.0.0.1:9051)")
	cmd.Flags().String("tor-control-password", "",
		"Password for the external Tor control port")
	cmd.Flags().String("tor-control-cookie", "",
		"Path to the external Tor control auth cookie file")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .handlescan in current or home directory)")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := catalogConfigFromFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := probeConfigFromFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error

	cfg.Format, err = cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.PrintAll, err = cmd.Flags().GetBool("print-all")
	if err != nil {
		return nil, err
	}

	cfg.NoColor, err = cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.Verbose = getVerboseFlag(cmd)

	if err := loadFileOptions(cfg); err != nil {
		return nil, err
	}

	// Positional arguments are the usernames to probe
	for _, arg := range args {
		username := model.NormalizeUsername(arg)
		if err := model.ValidateUsername(username); err != nil {
			return nil, fmt.Errorf("invalid username %q: %w", arg, err)
		}
		cfg.Usernames = append(cfg.Usernames, username)
	}

	// A single report file cannot hold several runs; the second would
	// overwrite the first.
	if cfg.OutputFile != "" && len(cfg.Usernames) > 1 {
		return nil, errors.New("--output works with a single username only")
	}

	return cfg, nil
}

// catalogConfigFromFlags populates the catalog source and filter settings
// from the flags registered by addCatalogFlags.
func catalogConfigFromFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	cfg.CatalogPath, err = cmd.Flags().GetString("catalog")
	if err != nil {
		return err
	}

	cfg.CatalogURL, err = cmd.Flags().GetString("catalog-url")
	if err != nil {
		return err
	}

	cfg.RefreshCatalog, err = cmd.Flags().GetBool("refresh-catalog")
	if err != nil {
		return err
	}

	cfg.Sites, err = cmd.Flags().GetStringSlice("site")
	if err != nil {
		return err
	}

	cfg.IncludeNSFW, err = cmd.Flags().GetBool("nsfw")
	if err != nil {
		return err
	}

	return nil
}

// probeConfigFromFlags populates the probe pacing and transport settings
// from the flags registered by addProbeFlags.
func probeConfigFromFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}

	cfg.Rate, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return err
	}

	cfg.ProxyURL, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return err
	}

	cfg.UniqueTor, err = cmd.Flags().GetBool("unique-tor")
	if err != nil {
		return err
	}
	if cfg.UniqueTor {
		cfg.UseTor = true
	}

	externalTor, err := cmd.Flags().GetString("external-tor")
	if err != nil {
		return err
	}
	if externalTor != "" {
		cfg.UseTor = true
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}

	cfg.TorControlAddress, err = cmd.Flags().GetString("tor-control")
	if err != nil {
		return err
	}

	cfg.TorControlPassword, err = cmd.Flags().GetString("tor-control-password")
	if err != nil {
		return err
	}

	cfg.TorControlCookie, err = cmd.Flags().GetString("tor-control-cookie")
	if err != nil {
		return err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	return nil
}

// loadFileOptions resolves and loads the configuration file into
// cfg.FileOptions.
// If the user explicitly specified a config file path, a missing file is an
// error. If no path was specified, a missing file silently yields an empty
// config.
func loadFileOptions(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		fileOpts, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.FileOptions = fileOpts
		return nil
	}

	if explicitConfigPath {
		return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.FileOptions = &config.File{
		Sites: make(map[string]config.SiteOverride),
	}
	return nil
}

// runScan executes the probing run for every configured username.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"usernames", cfg.Usernames,
		"useTor", cfg.UseTor,
		"workers", cfg.Workers,
		"saveHistory", cfg.SaveHistory,
	)

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("catalog ready", "sites", cat.Len())

	// Open the history database unless archiving is disabled
	var db *history.DB
	if cfg.SaveHistory {
		db, err = history.Open(cfg.DBDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
	}

	eng, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, username := range cfg.Usernames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		started := time.Now()
		results, err := eng.Probe(ctx, username, cat, consoleSink(cfg))
		if err != nil {
			return fmt.Errorf("probe run for %q failed: %w", username, err)
		}
		run := model.NewRun(username, started, time.Since(started), cat.Names(), results)

		if err := outputReport(cfg, run); err != nil {
			logger.Error("report failed", "username", username, "error", err)
		}

		if err := saveRun(ctx, db, run, logger); err != nil {
			logger.Error("failed to archive run", "username", username, "error", err)
		}
	}

	return nil
}

// loadCatalog loads the site catalog from the configured source and applies
// the site filter, the NSFW filter, and the config-file overrides, in that
// order. An unknown --site name fails the run even when a later filter would
// have dropped the site anyway.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Sites) > 0 {
		cat, err = cat.Filter(cfg.Sites...)
		if err != nil {
			return nil, err
		}
	}

	if !cfg.IncludeNSFW {
		cat = cat.WithoutNSFW()
	}

	cat, err = applyOverrides(cat, cfg.FileOptions)
	if err != nil {
		return nil, err
	}

	if cat.Len() == 0 {
		return nil, errors.New("no sites left to probe after filtering")
	}
	return cat, nil
}

// openCatalog loads the catalog from the local file when one is given, and
// from the XDG cache or the remote URL otherwise.
func openCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogPath, err)
		}
		return cat, nil
	}

	cachePath, err := catalog.CachePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog cache path: %w", err)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	cat, err := catalog.LoadOrFetch(ctx, client, cfg.CatalogURL, cachePath, cfg.RefreshCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	return cat, nil
}

// applyOverrides applies the config-file site overrides to the catalog.
// Disabled sites are dropped. Header and User-Agent overrides are merged
// onto copies; loaded descriptors are shared across runs and never mutated.
func applyOverrides(cat *catalog.Catalog, fileOpts *config.File) (*catalog.Catalog, error) {
	if fileOpts == nil {
		return cat, nil
	}

	disabled := make(map[string]bool)
	for _, name := range fileOpts.DisabledSites() {
		disabled[name] = true
	}

	out := catalog.New()
	for _, d := range cat.Sites() {
		if disabled[d.Name] {
			continue
		}

		override := fileOpts.OverrideFor(d.Name)
		if len(override.Headers) == 0 && override.UserAgent == "" {
			if err := out.Add(d); err != nil {
				return nil, err
			}
			continue
		}

		clone := *d
		headers := make(map[string]string, len(d.Headers)+len(override.Headers)+1)
		for k, v := range d.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		if override.UserAgent != "" {
			headers["User-Agent"] = override.UserAgent
		}
		clone.Headers = headers

		if err := out.Add(&clone); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// buildEngine assembles the transport and the probing engine from the
// configuration. The returned cleanup releases transport resources and, for
// the embedded daemon, shuts Tor down.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxWorkers(cfg.Workers),
		engine.WithRequestTimeout(cfg.Timeout),
		engine.WithRateLimit(cfg.Rate),
		engine.WithUserAgent(cfg.UserAgent),
	}

	// Direct transport, optionally through a user-supplied proxy
	if !cfg.UseTor {
		transportOpts := []transport.Option{transport.WithMaxBodySize(cfg.MaxBodySize)}
		if cfg.ProxyURL != "" {
			transportOpts = append(transportOpts, transport.WithProxyURL(cfg.ProxyURL))
		}
		client, err := transport.NewHTTPClient(transportOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		return engine.New(client, opts...), client.CloseIdleConnections, nil
	}

	// External Tor daemon
	if cfg.UseExternalTor {
		circuit, err := externalCircuit(cfg)
		if err != nil {
			return nil, nil, err
		}

		if status := circuit.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)

		client, err := circuit.ProbeClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}

		if cfg.UniqueTor {
			if circuit.CanRotate() {
				opts = append(opts, engine.WithIdentityRotation(circuit))
			} else {
				logger.Warn("identity rotation unavailable: set --tor-control to enable it; probes share one circuit")
			}
		}
		return engine.New(client, opts...), client.CloseIdleConnections, nil
	}

	// Embedded Tor daemon (default with --tor)
	circuit, embedded, err := startEmbeddedTor(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	client, err := circuit.ProbeClient()
	if err != nil {
		stopEmbeddedTor(embedded, logger)
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if cfg.UniqueTor && circuit.CanRotate() {
		opts = append(opts, engine.WithIdentityRotation(circuit))
	}

	cleanup := func() {
		client.CloseIdleConnections()
		stopEmbeddedTor(embedded, logger)
	}
	return engine.New(client, opts...), cleanup, nil
}

// externalCircuit builds a circuit on the external Tor daemon, wiring the
// control port when one is configured.
func externalCircuit(cfg *config.Config) (*tor.Circuit, error) {
	var circuitOpts []tor.CircuitOption
	if cfg.TorControlAddress != "" {
		circuitOpts = append(circuitOpts, tor.WithControlAddr(cfg.TorControlAddress))
		switch {
		case cfg.TorControlPassword != "":
			circuitOpts = append(circuitOpts, tor.WithControlAuth(tor.PasswordAuth(cfg.TorControlPassword)))
		case cfg.TorControlCookie != "":
			circuitOpts = append(circuitOpts, tor.WithControlAuth(tor.CookieAuth(cfg.TorControlCookie)))
		}
	}

	circuit, err := tor.NewCircuit(cfg.TorProxyAddress, circuitOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor circuit: %w", err)
	}
	return circuit, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a verified
// circuit on it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Circuit, *tor.EmbeddedTor, error) {
	fmt.Println("Starting embedded Tor daemon...")
	fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	// Start the embedded Tor daemon
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)

	fmt.Printf("Embedded Tor daemon started successfully!\n")
	fmt.Printf("SOCKS proxy: %s\n\n", embedded.SocksAddr())

	circuit, err := embedded.NewCircuit()
	if err != nil {
		stopEmbeddedTor(embedded, logger)
		return nil, nil, fmt.Errorf("failed to create Tor circuit: %w", err)
	}

	// Verify the connection
	if status := circuit.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stopEmbeddedTor(embedded, logger)
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return circuit, embedded, nil
}

// stopEmbeddedTor shuts the embedded daemon down, logging shutdown errors.
func stopEmbeddedTor(embedded *tor.EmbeddedTor, logger *slog.Logger) {
	logger.Info("stopping embedded Tor daemon...")
	if err := embedded.Stop(); err != nil {
		logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// consoleSink returns the live progress sink for a run. Machine formats
// printing to stdout get a silent sink so their output stays parseable.
func consoleSink(cfg *config.Config) model.NotifySink {
	if cfg.Format != config.FormatText && cfg.OutputFile == "" {
		return model.NopSink{}
	}

	var opts []notify.ConsoleOption
	if cfg.PrintAll {
		opts = append(opts, notify.WithPrintAll())
	}
	if cfg.NoColor {
		opts = append(opts, notify.WithoutColor())
	}
	return notify.NewConsole(os.Stdout, opts...)
}

// outputReport writes the report for one run in the requested format.
// The default text format on stdout is already covered by the live console
// stream, so it is only written when directed to a file.
func outputReport(cfg *config.Config, run *model.Run) error {
	if cfg.Format == config.FormatText && cfg.OutputFile == "" {
		return nil
	}

	// Determine output destination
	var output *os.File
	if cfg.OutputFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.OutputFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports reveal which services an investigated handle uses, so
		// the file is owner-readable only.
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	writer, err := newReportWriter(cfg, output)
	if err != nil {
		return err
	}
	_, err = writer.Write(run)
	return err
}

// newReportWriter selects the report writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) (report.Writer, error) {
	switch cfg.Format {
	case config.FormatText:
		return report.NewTextWriter(output,
			report.WithShowAll(cfg.PrintAll),
			report.WithVerbose(cfg.Verbose),
		), nil
	case config.FormatCSV:
		return report.NewCSVWriter(output), nil
	case config.FormatJSON:
		return report.NewVersionedJSONWriter(output, getVersion(), report.WithPrettyPrint()), nil
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownFormat, cfg.Format)
	}
}

// saveRun archives the run in the history database.
// If db is nil, archiving is disabled and this function is a no-op.
func saveRun(ctx context.Context, db *history.DB, run *model.Run, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run archived", "username", run.Username, "id", id)
	return nil
}

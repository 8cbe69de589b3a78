package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values match what long-time users of username checkers expect,
// and the Tor values match the standard daemon setup.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "handlescan"

	// DefaultTimeout is the budget for each individual probe. 60 seconds is
	// generous for clearnet sites; an answer slower than that is better
	// reported as a timeout than waited out, because one hung site would
	// otherwise stall the tail of the whole run.
	DefaultTimeout = 60 * time.Second

	// DefaultWorkers caps concurrent probes. The engine further clamps the
	// pool to the site count and the logical CPU count, so raising this
	// beyond the CPU count has no effect.
	DefaultWorkers = 20

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is typically sufficient for most
	// network conditions, but may need to be increased for slow connections.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultCatalogURL is the canonical site catalog location. A downloaded
	// copy is cached under the XDG data directory and reused until a refresh
	// is requested.
	DefaultCatalogURL = "https://raw.githubusercontent.com/handlescan/catalog/main/data.json"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for any profile page while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Report format names accepted by the --format flag.
const (
	// FormatText is the human-readable console report.
	FormatText = "text"

	// FormatCSV emits one row per site result.
	FormatCSV = "csv"

	// FormatJSON emits the full run as indented JSON.
	FormatJSON = "json"

	// FormatMarkdown emits a GitHub Flavored Markdown report with a
	// summary chart.
	FormatMarkdown = "markdown"
)

// validFormats is the set Validate accepts for the Format field.
var validFormats = map[string]bool{
	FormatText:     true,
	FormatCSV:      true,
	FormatJSON:     true,
	FormatMarkdown: true,
}

// Config holds all configuration options for a probing run.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., TorConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Usernames is the list of handles to probe. Each username runs as its
	// own pass over the catalog.
	Usernames []string

	// CatalogPath is a local site catalog file to load instead of the
	// cached or remote one.
	CatalogPath string

	// CatalogURL is the remote catalog location used when no local catalog
	// is given and the cache is missing or being refreshed.
	CatalogURL string

	// RefreshCatalog forces a fresh catalog download even when a cached
	// copy exists.
	RefreshCatalog bool

	// Sites restricts the run to the named catalog sites. Unknown names
	// fail the run rather than silently probing nothing.
	Sites []string

	// IncludeNSFW keeps sites flagged NSFW in the run. They are excluded
	// by default.
	IncludeNSFW bool

	// Timeout is the budget for each individual probe, not the whole run.
	Timeout time.Duration

	// Workers caps the number of concurrent probes.
	Workers int

	// Rate paces dispatches to at most this many requests per second
	// across all workers. Zero disables pacing.
	Rate float64

	// ProxyURL routes probes through an HTTP or SOCKS5 proxy, given as
	// "socks5://host:port" or "http://host:port". Mutually exclusive with
	// UseTor.
	ProxyURL string

	// UseTor routes probes through Tor. Unless UseExternalTor is set, an
	// embedded Tor daemon is started for the run and stopped afterwards.
	UseTor bool

	// UniqueTor requests a fresh Tor circuit after every dispatched probe
	// so consecutive probes do not share an exit. Implies UseTor.
	UniqueTor bool

	// UseExternalTor disables the embedded Tor daemon and uses the daemon
	// already listening at TorProxyAddress.
	//
	// Note: The embedded Tor daemon takes 1-3 minutes to bootstrap and
	// connect to the Tor network on first start.
	UseExternalTor bool

	// TorProxyAddress is the SOCKS5 address of the external Tor daemon in
	// "host:port" format. Only used with UseExternalTor.
	TorProxyAddress string

	// TorControlAddress is the control port of the external Tor daemon in
	// "host:port" format. Identity rotation with UniqueTor needs it;
	// probing alone does not. The embedded daemon wires its own.
	TorControlAddress string

	// TorControlPassword authenticates to the external control port. When
	// empty and TorControlCookie is set, cookie authentication is used
	// instead; when both are empty the AUTHENTICATE command is sent bare.
	TorControlPassword string

	// TorControlCookie is the auth cookie file path of the external Tor
	// daemon.
	TorControlCookie string

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to start and bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration

	// Format selects the report format: text, csv, json, or markdown.
	Format string

	// OutputFile writes the report to this path instead of stdout.
	// Directories are created automatically if they don't exist.
	OutputFile string

	// PrintAll reports every probed site instead of only the claimed ones.
	PrintAll bool

	// NoColor disables ANSI colors in console output.
	NoColor bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// DBDir is the directory path for storing the run-history SQLite
	// database. Defaults to the XDG data directory
	// (~/.local/share/handlescan on Linux).
	DBDir string

	// SaveHistory archives each completed run in the history database so
	// later runs can be compared against it.
	SaveHistory bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .handlescan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// FileOptions holds settings loaded from the configuration file.
	// This is populated by LoadConfigFile and consulted for flag defaults
	// and per-site overrides.
	FileOptions *File

	// UserAgent overrides the User-Agent sent with probes that do not set
	// their own. Empty means the engine's default browser string; sites
	// answer obvious bots differently than browsers, so overriding this
	// can change classifications.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, worker
// count). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		CatalogURL:        DefaultCatalogURL,
		Timeout:           DefaultTimeout,
		Workers:           DefaultWorkers,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Format:            FormatText,
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for handlescan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/handlescan
// On macOS: ~/Library/Application Support/handlescan
// On Windows: %LOCALAPPDATA%\handlescan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for handlescan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/handlescan
// On macOS: ~/Library/Application Support/handlescan
// On Windows: %APPDATA%\handlescan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for handlescan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/handlescan
// On macOS: ~/Library/Caches/handlescan
// On Windows: %LOCALAPPDATA%\handlescan\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any probing begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one handle to probe
	if len(c.Usernames) == 0 {
		return ErrNoUsername
	}

	if err := c.ValidateProbe(); err != nil {
		return err
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}

	return nil
}

// ValidateProbe checks the probe pacing and transport settings alone.
// Commands that probe without user-supplied usernames or reports, such as
// catalog verification, use it instead of Validate.
func (c *Config) ValidateProbe() error {
	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Workers must be positive; zero would mean no probing at all
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	// Rate must be non-negative; zero means unpaced
	if c.Rate < 0 {
		return ErrInvalidRate
	}

	// A custom proxy and Tor are both transport selections; picking both
	// is ambiguous
	if c.ProxyURL != "" && (c.UseTor || c.UniqueTor) {
		return ErrProxyWithTor
	}

	// MaxBodySize must be non-negative; 0 means use the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".handlescan"

// SiteOverride adjusts how one catalog site is probed without editing the
// catalog itself. Typical uses are supplying an API token header for sites
// that rate-limit anonymous requests, or disabling a site that currently
// misclassifies.
type SiteOverride struct {
	// Headers are extra request headers for this site. They are merged
	// over the catalog descriptor's headers, override winning on conflict.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent for this site only.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Disabled removes the site from probing runs entirely.
	Disabled bool `yaml:"disabled,omitempty"`
}

// File represents the structure of the .handlescan configuration file.
type File struct {
	// Sites maps catalog site names to their overrides. Keys must match
	// the site names used in the catalog (e.g., "GitHub").
	Sites map[string]SiteOverride `yaml:"sites,omitempty"`

	// Defaults contains overrides applied to every site unless the
	// site-specific entry replaces them.
	Defaults SiteOverride `yaml:"defaults,omitempty"`
}

// LoadConfigFile loads site overrides from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteOverride)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .handlescan in the current directory
// 3. Look for .handlescan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// OverrideFor returns the effective override for the named site, merging
// the site-specific entry over the defaults.
func (cf *File) OverrideFor(site string) SiteOverride {
	result := cf.Defaults

	override, ok := cf.Sites[site]
	if !ok {
		return result
	}

	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}
	if override.Disabled {
		result.Disabled = true
	}
	if len(override.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(override.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range override.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	return result
}

// DisabledSites returns the names of all sites the file disables outright.
// Defaults cannot disable sites; a default Disabled flag would silently turn
// every run into a no-op, so it is ignored here.
func (cf *File) DisabledSites() []string {
	var names []string
	for name, override := range cf.Sites {
		if override.Disabled {
			names = append(names, name)
		}
	}
	return names
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the xmlhttp configuration
type Config struct {
	Timeout            int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds, 0 means none
	MaxRedirects       int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	RejectUnauthorized *bool             `json:"rejectUnauthorized,omitempty" yaml:"rejectUnauthorized,omitempty"`
	DisableHeaderCheck *bool             `json:"disableHeaderCheck,omitempty" yaml:"disableHeaderCheck,omitempty"`
	DetachKeepAlive    *bool             `json:"detachKeepAlive,omitempty" yaml:"detachKeepAlive,omitempty"`
	Decompress         *bool             `json:"decompress,omitempty" yaml:"decompress,omitempty"`
	SyncMode           string            `json:"syncMode,omitempty" yaml:"syncMode,omitempty"` // direct or spool
	SpoolDir           string            `json:"spoolDir,omitempty" yaml:"spoolDir,omitempty"`
	Headers            map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	ResponseType       string            `json:"responseType,omitempty" yaml:"responseType,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
	NoColor            *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Verbose            *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// TLSConfig holds paths to PEM files and the TLS settings that go with them
type TLSConfig struct {
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	CA         string `json:"ca,omitempty" yaml:"ca,omitempty"`
	Ciphers    string `json:"ciphers,omitempty" yaml:"ciphers,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetRejectUnauthorized returns whether peer certificates are verified, defaulting to true
func (c *Config) GetRejectUnauthorized() bool {
	return getBool(c.RejectUnauthorized, true)
}

// GetDisableHeaderCheck returns the header check bypass, defaulting to false
func (c *Config) GetDisableHeaderCheck() bool {
	return getBool(c.DisableHeaderCheck, false)
}

// GetDetachKeepAlive returns the keep-alive detach setting, defaulting to false
func (c *Config) GetDetachKeepAlive() bool {
	return getBool(c.DetachKeepAlive, false)
}

// GetDecompress returns the body decoding setting, defaulting to true
func (c *Config) GetDecompress() bool {
	return getBool(c.Decompress, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".xmlhttp.json",
	"xmlhttp.json",
	".xmlhttp.yaml",
	".xmlhttp.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return config, nil
}

// ApplyEnv overrides settings from XMLHTTP_* environment variables
func (c *Config) ApplyEnv() *Config {
	result := *c
	if v, ok := os.LookupEnv("XMLHTTP_NO_COLOR"); ok {
		result.NoColor = BoolPtr(v == "true" || v == "1")
	}
	if v := os.Getenv("XMLHTTP_RESPONSE_TYPE"); v != "" {
		result.ResponseType = v
	}
	return &result
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.SyncMode != "" {
		result.SyncMode = other.SyncMode
	}
	if other.SpoolDir != "" {
		result.SpoolDir = other.SpoolDir
	}
	if other.ResponseType != "" {
		result.ResponseType = other.ResponseType
	}

	// Boolean flags - only override if explicitly set in other config
	if other.RejectUnauthorized != nil {
		result.RejectUnauthorized = other.RejectUnauthorized
	}
	if other.DisableHeaderCheck != nil {
		result.DisableHeaderCheck = other.DisableHeaderCheck
	}
	if other.DetachKeepAlive != nil {
		result.DetachKeepAlive = other.DetachKeepAlive
	}
	if other.Decompress != nil {
		result.Decompress = other.Decompress
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if other.TLS != nil {
		merged := TLSConfig{}
		if result.TLS != nil {
			merged = *result.TLS
		}
		if other.TLS.Cert != "" {
			merged.Cert = other.TLS.Cert
		}
		if other.TLS.Key != "" {
			merged.Key = other.TLS.Key
		}
		if other.TLS.Passphrase != "" {
			merged.Passphrase = other.TLS.Passphrase
		}
		if other.TLS.CA != "" {
			merged.CA = other.TLS.CA
		}
		if other.TLS.Ciphers != "" {
			merged.Ciphers = other.TLS.Ciphers
		}
		result.TLS = &merged
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML when the path ends
// in .yaml or .yml and as JSON otherwise
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

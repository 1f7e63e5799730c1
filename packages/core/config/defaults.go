package config

import "github.com/abdul-hamid-achik/xmlhttp/packages/transport"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:            0, // transfers run until done, failed or aborted
		MaxRedirects:       transport.DefaultMaxRedirects,
		RejectUnauthorized: BoolPtr(true),
		DisableHeaderCheck: BoolPtr(false),
		DetachKeepAlive:    BoolPtr(false),
		Decompress:         BoolPtr(true),
		SyncMode:           "direct",
		SpoolDir:           "",
		Headers:            nil,
		ResponseType:       "",
		NoColor:            BoolPtr(false),
		Verbose:            BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetRejectUnauthorized() == defaults.GetRejectUnauthorized() &&
		c.GetDisableHeaderCheck() == defaults.GetDisableHeaderCheck() &&
		c.GetDetachKeepAlive() == defaults.GetDetachKeepAlive() &&
		c.GetDecompress() == defaults.GetDecompress() &&
		c.SyncMode == defaults.SyncMode &&
		c.SpoolDir == defaults.SpoolDir &&
		len(c.Headers) == 0 &&
		c.ResponseType == defaults.ResponseType &&
		c.TLS == nil &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.GetVerbose() == defaults.GetVerbose()
}

package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/body"
	"github.com/abdul-hamid-achik/xmlhttp/packages/syncbridge"
	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
	"github.com/abdul-hamid-achik/xmlhttp/packages/xhr"
	"github.com/sirupsen/logrus"
)

// TLSOptions reads the PEM files named in the TLS section
func (c *Config) TLSOptions() (transport.TLSOptions, error) {
	var o transport.TLSOptions
	if !c.GetRejectUnauthorized() {
		o.RejectUnauthorized = BoolPtr(false)
	}
	if c.TLS == nil {
		return o, nil
	}

	read := func(path, what string) ([]byte, error) {
		if path == "" {
			return nil, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading TLS %s: %w", what, err)
		}
		return data, nil
	}

	var err error
	if o.Cert, err = read(c.TLS.Cert, "certificate"); err != nil {
		return o, err
	}
	if o.Key, err = read(c.TLS.Key, "key"); err != nil {
		return o, err
	}
	if o.CA, err = read(c.TLS.CA, "CA bundle"); err != nil {
		return o, err
	}
	o.Passphrase = c.TLS.Passphrase
	o.Ciphers = c.TLS.Ciphers
	return o, nil
}

// Options converts the configuration into request options. logger may be nil.
func (c *Config) Options(logger logrus.FieldLogger) ([]xhr.Option, error) {
	transportOpts := []transport.DispatcherOption{
		transport.WithDetachKeepAlive(c.GetDetachKeepAlive()),
		transport.WithDecompression(c.GetDecompress()),
	}
	if c.Timeout > 0 {
		transportOpts = append(transportOpts, transport.WithTimeout(time.Duration(c.Timeout)*time.Millisecond))
	}
	if c.MaxRedirects > 0 {
		transportOpts = append(transportOpts, transport.WithMaxRedirects(c.MaxRedirects))
	}

	tlsOpts, err := c.TLSOptions()
	if err != nil {
		return nil, err
	}
	if !tlsOpts.IsZero() {
		transportOpts = append(transportOpts, transport.WithTLS(tlsOpts))
	}

	if logger != nil {
		transportOpts = append(transportOpts, transport.WithLogger(logger))
	}
	// one dispatcher so requests built from these options share connections
	dispatcher, err := transport.NewDispatcher(transportOpts...)
	if err != nil {
		return nil, err
	}

	opts := []xhr.Option{
		xhr.WithDispatcher(dispatcher),
		xhr.WithDisableHeaderCheck(c.GetDisableHeaderCheck()),
	}
	if logger != nil {
		opts = append(opts, xhr.WithLogger(logger))
	}

	if len(c.Headers) > 0 {
		headers := make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			headers[k] = []string{v}
		}
		opts = append(opts, xhr.WithDefaultHeaders(headers))
	}

	if c.ResponseType != "" {
		rt, err := body.ParseResponseType(c.ResponseType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, xhr.WithResponseType(rt))
	}

	mode, err := syncbridge.ParseMode(c.SyncMode)
	if err != nil {
		return nil, err
	}
	bridgeOpts := []syncbridge.Option{syncbridge.WithMode(mode)}
	if c.SpoolDir != "" {
		bridgeOpts = append(bridgeOpts, syncbridge.WithDir(c.SpoolDir))
	}
	if logger != nil {
		bridgeOpts = append(bridgeOpts, syncbridge.WithLogger(logger))
	}
	opts = append(opts, xhr.WithBridge(syncbridge.New(bridgeOpts...)))

	return opts, nil
}

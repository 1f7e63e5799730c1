package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// TLSOptions holds the TLS material for https requests. PEM fields hold
// file contents, not paths.
type TLSOptions struct {
	Cert       []byte
	Key        []byte
	Passphrase string
	CA         []byte
	// Ciphers is a ':' or ',' separated list of cipher suite names, e.g.
	// "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:TLS_AES_128_GCM_SHA256".
	Ciphers string
	// RejectUnauthorized defaults to true when nil.
	RejectUnauthorized *bool
	ServerName         string
}

// IsZero reports whether no TLS option is set.
func (o TLSOptions) IsZero() bool {
	return len(o.Cert) == 0 && len(o.Key) == 0 && len(o.CA) == 0 &&
		o.Ciphers == "" && o.RejectUnauthorized == nil && o.ServerName == ""
}

// Verify reports whether the peer certificate is verified.
func (o TLSOptions) Verify() bool {
	return o.RejectUnauthorized == nil || *o.RejectUnauthorized
}

// Config builds a client tls.Config from the options.
func (o TLSOptions) Config() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !o.Verify(),
		ServerName:         o.ServerName,
	}

	if len(o.Cert) > 0 || len(o.Key) > 0 {
		key, err := decryptKey(o.Key, o.Passphrase)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(o.Cert, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if len(o.CA) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(o.CA) {
			return nil, errors.New("failed to parse CA certificate")
		}
		cfg.RootCAs = pool
	}

	if o.Ciphers != "" {
		suites, err := ParseCipherSuites(o.Ciphers)
		if err != nil {
			return nil, err
		}
		cfg.CipherSuites = suites
	}

	return cfg, nil
}

// ParseCipherSuites maps a ':' or ',' separated list of names to suite ids.
func ParseCipherSuites(list string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}
	for _, s := range tls.InsecureCipherSuites() {
		known[s.Name] = s.ID
	}

	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ':' || r == ',' || r == ' '
	})
	suites := make([]uint16, 0, len(fields))
	for _, name := range fields {
		id, ok := known[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}

// decryptKey returns key unchanged unless it is an encrypted PEM block.
func decryptKey(key []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(key)
	//nolint:staticcheck // legacy encrypted PEM keys are still handed to us
	if block == nil || !x509.IsEncryptedPEMBlock(block) {
		return key, nil
	}
	if passphrase == "" {
		return nil, errors.New("client key is encrypted and no passphrase was given")
	}
	//nolint:staticcheck
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

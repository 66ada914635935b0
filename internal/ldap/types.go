package ldap

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
)

// ConnectionConfig holds configuration for LDAP connections.
type ConnectionConfig struct {
	// Connection settings
	Timeout time.Duration `default:"30s"` // Dial and per-request timeout

	// TLS settings
	TLSConfig          *tls.Config // Custom TLS configuration (overrides the fields below)
	UseTLS             bool        `default:"true"` // Require TLS; plain LDAP without StartTLS is refused
	SkipTLS            bool        // Skip StartTLS on ldap:// connections (not recommended)
	InsecureSkipVerify bool        // Disable certificate verification (testing only)
	TLSCACertFile      string      // Path to a PEM CA bundle used to verify servers

	// Kerberos settings; GSSAPI is used instead of simple bind when a realm is set
	KerberosRealm  string // Kerberos realm for GSSAPI authentication
	KerberosConfig string `default:"/etc/krb5.conf"` // Path to krb5.conf; empty locates KDCs through DNS
	KerberosSPN    string // Service principal override (default ldap/<host>)

	// Retry settings
	MaxRetries     int           `default:"3"`     // Maximum retry attempts
	InitialBackoff time.Duration `default:"500ms"` // Initial backoff duration
	MaxBackoff     time.Duration `default:"30s"`   // Maximum backoff duration
	BackoffFactor  float64       `default:"2.0"`   // Backoff multiplication factor
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	if err := defaults.Set(cfg); err != nil {
		// The defaults are static struct tags.
		panic(fmt.Sprintf("invalid connection defaults: %v", err))
	}
	return cfg
}

// Validate checks the configuration for values the store cannot work with.
func (c *ConnectionConfig) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if c.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}

	if c.InitialBackoff <= 0 {
		return errors.New("InitialBackoff must be positive")
	}

	if c.MaxBackoff < c.InitialBackoff {
		return errors.New("MaxBackoff must not be less than InitialBackoff")
	}

	if c.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}

	if c.UseTLS && c.SkipTLS {
		return errors.New("UseTLS and SkipTLS are mutually exclusive")
	}

	return nil
}

// AuthMethod returns the authentication method used for non-anonymous binds.
func (c *ConnectionConfig) AuthMethod() AuthMethod {
	if c.KerberosRealm != "" {
		return AuthMethodKerberos
	}
	return AuthMethodSimpleBind
}

// tlsConfig builds the TLS configuration for connections to host.
func (c *ConnectionConfig) tlsConfig(host string) (*tls.Config, error) {
	if c.TLSConfig != nil {
		cfg := c.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		return cfg, nil
	}

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: host,
		// Certificate validation enabled by default
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec
	}

	if c.TLSCACertFile != "" {
		pem, err := os.ReadFile(c.TLSCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.TLSCACertFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// ServerInfo contains information about an LDAP server.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "path", "fallback"
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}

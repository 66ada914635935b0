// Package adlib wires directory sessions to Active Directory over LDAP.
//
//	session, err := adlib.New(ctx, adlib.ConfigFromEnv())
//	if err != nil {
//		return err
//	}
//	if err := session.SetDomain("LDAP://dc1.example.com/DC=example,DC=com"); err != nil {
//		return err
//	}
//	if err := session.SetAdminAccount(ctx, "administrator", password); err != nil {
//		return err
//	}
//	user, err := session.CreateUser(ctx, "jdoe", "S3cret!")
package adlib

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/adlib/directory"
	"github.com/isometry/adlib/internal/ldap"
)

// Config holds the LDAP connection settings.
type Config = ldap.ConnectionConfig

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *Config {
	return ldap.DefaultConfig()
}

// ConfigFromEnv returns the default configuration overridden by AD_*
// environment variables. Values that do not parse are ignored.
func ConfigFromEnv() *Config {
	config := DefaultConfig()

	config.UseTLS = getBoolValue("AD_USE_TLS", config.UseTLS)
	config.SkipTLS = getBoolValue("AD_SKIP_TLS", config.SkipTLS)
	if config.SkipTLS && os.Getenv("AD_USE_TLS") == "" {
		config.UseTLS = false
	}
	config.InsecureSkipVerify = getBoolValue("AD_SKIP_TLS_VERIFY", config.InsecureSkipVerify)
	config.TLSCACertFile = getStringValue("AD_TLS_CA_CERT_FILE", config.TLSCACertFile)

	config.KerberosRealm = getStringValue("AD_KERBEROS_REALM", config.KerberosRealm)
	config.KerberosConfig = getStringValue("AD_KERBEROS_CONFIG", config.KerberosConfig)
	config.KerberosSPN = getStringValue("AD_KERBEROS_SPN", config.KerberosSPN)

	if connectTimeout := getInt64Value("AD_CONNECT_TIMEOUT", 0); connectTimeout > 0 {
		config.Timeout = time.Duration(connectTimeout) * time.Second
	}

	if maxRetries := getInt64Value("AD_MAX_RETRIES", -1); maxRetries >= 0 {
		config.MaxRetries = int(maxRetries)
	}

	if initialBackoff := getInt64Value("AD_INITIAL_BACKOFF", 0); initialBackoff > 0 {
		config.InitialBackoff = time.Duration(initialBackoff) * time.Millisecond
	}

	if maxBackoff := getInt64Value("AD_MAX_BACKOFF", 0); maxBackoff > 0 {
		config.MaxBackoff = time.Duration(maxBackoff) * time.Second
	}

	return config
}

// New returns an unconfigured session backed by Active Directory. A nil
// config selects DefaultConfig.
func New(ctx context.Context, config *Config) (*directory.Session, error) {
	start := time.Now()

	store, err := ldap.NewStore(ctx, config)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP store", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	tflog.Debug(ctx, "Directory session created", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return directory.NewSession(ctx, store), nil
}

// IsNotFoundError reports whether the directory rejected an operation
// because an entry does not exist.
func IsNotFoundError(err error) bool {
	return ldap.IsNotFoundError(err)
}

// IsConflictError reports whether an entry or value already exists.
func IsConflictError(err error) bool {
	return ldap.IsConflictError(err)
}

// IsAuthenticationError reports whether a bind was rejected.
func IsAuthenticationError(err error) bool {
	return ldap.IsAuthenticationError(err)
}

// IsPermissionError reports whether the bound account lacks access rights.
func IsPermissionError(err error) bool {
	return ldap.IsPermissionError(err)
}

// IsConnectionError reports whether the directory could not be reached.
func IsConnectionError(err error) bool {
	return ldap.IsConnectionError(err)
}

// IsRetryableError reports whether an operation may succeed if repeated.
func IsRetryableError(err error) bool {
	return ldap.IsRetryableError(err)
}

func getStringValue(envVar, defaultValue string) string {
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolValue(envVar string, defaultValue bool) bool {
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Value(envVar string, defaultValue int64) int64 {
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

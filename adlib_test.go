package adlib

import (
	"errors"
	"testing"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/adlib/directory"
	"github.com/isometry/adlib/internal/ldap"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), ConfigFromEnv())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AD_SKIP_TLS", "true")
		t.Setenv("AD_SKIP_TLS_VERIFY", "1")
		t.Setenv("AD_TLS_CA_CERT_FILE", "/etc/ssl/ad-ca.pem")
		t.Setenv("AD_KERBEROS_REALM", "EXAMPLE.COM")
		t.Setenv("AD_KERBEROS_CONFIG", "/opt/krb5.conf")
		t.Setenv("AD_KERBEROS_SPN", "ldap/dc1.example.com")
		t.Setenv("AD_CONNECT_TIMEOUT", "10")
		t.Setenv("AD_MAX_RETRIES", "0")
		t.Setenv("AD_INITIAL_BACKOFF", "250")
		t.Setenv("AD_MAX_BACKOFF", "5")

		config := ConfigFromEnv()

		assert.False(t, config.UseTLS)
		assert.True(t, config.SkipTLS)
		assert.True(t, config.InsecureSkipVerify)
		assert.Equal(t, "/etc/ssl/ad-ca.pem", config.TLSCACertFile)
		assert.Equal(t, "EXAMPLE.COM", config.KerberosRealm)
		assert.Equal(t, "/opt/krb5.conf", config.KerberosConfig)
		assert.Equal(t, "ldap/dc1.example.com", config.KerberosSPN)
		assert.Equal(t, 10*time.Second, config.Timeout)
		assert.Equal(t, 0, config.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, config.InitialBackoff)
		assert.Equal(t, 5*time.Second, config.MaxBackoff)
		require.NoError(t, config.Validate())
	})

	t.Run("unparseable values are ignored", func(t *testing.T) {
		t.Setenv("AD_USE_TLS", "maybe")
		t.Setenv("AD_CONNECT_TIMEOUT", "soon")

		config := ConfigFromEnv()
		assert.True(t, config.UseTLS)
		assert.Equal(t, DefaultConfig().Timeout, config.Timeout)
	})
}

func TestNew(t *testing.T) {
	session, err := New(t.Context(), nil)
	require.NoError(t, err)

	assert.False(t, session.IsDomainConfigured())
	assert.False(t, session.IsAdminConfigured())

	_, _, err = session.FindCNByUsername(t.Context(), "jdoe")
	assert.ErrorIs(t, err, directory.ErrSessionNotConfigured)

	require.NoError(t, session.SetDomain("LDAP://dc1.example.com/DC=example,DC=com"))
	path, err := session.BuildPath([]string{"Users"})
	require.NoError(t, err)
	assert.Equal(t, "LDAP://dc1.example.com/OU=Users,DC=example,DC=com", path)
}

func TestNew_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = -1

	_, err := New(t.Context(), config)
	require.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	wrap := func(code uint16) error {
		return ldap.WrapError("bind", "DC=example,DC=com", goldap.NewError(code, errors.New("server message")))
	}

	assert.True(t, IsNotFoundError(wrap(goldap.LDAPResultNoSuchObject)))
	assert.True(t, IsConflictError(wrap(goldap.LDAPResultEntryAlreadyExists)))
	assert.True(t, IsAuthenticationError(wrap(goldap.LDAPResultInvalidCredentials)))
	assert.True(t, IsPermissionError(wrap(goldap.LDAPResultInsufficientAccessRights)))
	assert.True(t, IsConnectionError(wrap(goldap.LDAPResultUnavailable)))
	assert.True(t, IsRetryableError(wrap(goldap.LDAPResultBusy)))

	assert.False(t, IsNotFoundError(directory.ErrInvalidArgument))
	assert.False(t, IsRetryableError(wrap(goldap.LDAPResultInvalidCredentials)))
}

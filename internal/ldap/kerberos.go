package ldap

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
)

// newGSSAPIClient is replaced in tests.
var newGSSAPIClient = func(username, realm, password string, krb5conf *krb5config.Config) (ldap.GSSAPIClient, error) {
	return &gssapi.Client{
		Client: krb5client.NewWithPassword(username, realm, password, krb5conf, krb5client.DisablePAFXFAST(true)),
	}, nil
}

// kerberosBind authenticates conn with GSSAPI using the account password.
// A realm in the username (user@REALM) overrides the configured realm.
func kerberosBind(conn connection, cfg *ConnectionConfig, server *ServerInfo, username, password string) error {
	principal, realm := splitPrincipal(username, cfg.KerberosRealm)
	if realm == "" {
		return fmt.Errorf("kerberos realm is required (set KerberosRealm or use user@REALM)")
	}

	krb5conf, err := loadKrb5Config(cfg, realm)
	if err != nil {
		return err
	}

	client, err := newGSSAPIClient(principal, realm, password, krb5conf)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// loadKrb5Config reads the configured krb5.conf. Without one, a runtime
// configuration locating the KDCs of realm through DNS is used.
func loadKrb5Config(cfg *ConnectionConfig, realm string) (*krb5config.Config, error) {
	if cfg.KerberosConfig == "" {
		krb5conf, err := krb5config.NewFromString(runtimeKrb5Conf(realm))
		if err != nil {
			return nil, fmt.Errorf("failed to generate kerberos configuration: %w", err)
		}
		return krb5conf, nil
	}

	if _, err := os.Stat(cfg.KerberosConfig); err != nil {
		return nil, fmt.Errorf("kerberos configuration file not found at %s: %w", cfg.KerberosConfig, err)
	}

	krb5conf, err := krb5config.Load(cfg.KerberosConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kerberos configuration %s: %w", cfg.KerberosConfig, err)
	}
	return krb5conf, nil
}

// runtimeKrb5Conf generates a krb5.conf for DNS-based KDC discovery,
// mapping the realm's DNS domain to the realm.
func runtimeKrb5Conf(realm string) string {
	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
  default_realm = %s
  dns_lookup_kdc = true
  dns_lookup_realm = false
  rdns = false
  forwardable = true
  ticket_lifetime = 24h
  renew_lifetime = 7d

[domain_realm]
  .%s = %s
  %s = %s
`, realm, domain, realm, domain, realm)
}

// splitPrincipal separates "user@REALM" into its parts. Down-level
// "DOMAIN\user" names are reduced to the user part.
func splitPrincipal(username, defaultRealm string) (string, string) {
	if _, user, ok := strings.Cut(username, `\`); ok {
		username = user
	}
	if user, realm, ok := strings.Cut(username, "@"); ok {
		return user, strings.ToUpper(realm)
	}
	return username, defaultRealm
}

// buildServicePrincipal constructs the LDAP service principal name from server info.
// If cfg.KerberosSPN is set, it overrides the automatic SPN construction.
func buildServicePrincipal(cfg *ConnectionConfig, server *ServerInfo) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if server == nil || server.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	return "ldap/" + server.Host, nil
}

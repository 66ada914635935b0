package ldap

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Default ports by path scheme.
const (
	PortLDAP             = 389
	PortLDAPS            = 636
	PortGlobalCatalog    = 3268
	PortGlobalCatalogSSL = 3269
)

// Path is a parsed directory path of the form
//
//	<scheme>://[host[:port]/]<distinguished name>
//
// where scheme is LDAP, LDAPS or GC in any case. A path without a host is
// serverless: its servers are discovered from the DC components of the DN.
type Path struct {
	Scheme string // Scheme as written, e.g. "LDAP"
	Host   string
	Port   int
	DN     string

	prefix string // everything before DN, as written
}

// ParsePath parses a directory path.
func ParsePath(path string) (Path, error) {
	scheme, rest, ok := strings.Cut(path, "://")
	if !ok {
		return Path{}, fmt.Errorf("invalid path %q: missing scheme", path)
	}

	p := Path{Scheme: scheme}
	switch strings.ToLower(scheme) {
	case "ldap":
		p.Port = PortLDAP
	case "ldaps":
		p.Port = PortLDAPS
	case "gc":
		p.Port = PortGlobalCatalog
	default:
		return Path{}, fmt.Errorf("invalid path %q: unsupported scheme %q", path, scheme)
	}

	hostport, dn, hasSlash := strings.Cut(rest, "/")
	if strings.Contains(hostport, "=") {
		// Serverless: LDAP://DC=example,DC=com
		hostport, dn = "", rest
	}

	if hostport != "" {
		host, port, err := splitHostPort(hostport)
		if err != nil {
			return Path{}, fmt.Errorf("invalid path %q: %w", path, err)
		}
		p.Host = host
		if port != 0 {
			p.Port = port
		}
	}

	if dn != "" {
		if _, err := ldap.ParseDN(dn); err != nil {
			return Path{}, fmt.Errorf("invalid path %q: %w", path, err)
		}
	}
	p.DN = dn

	if p.Host == "" && p.DN == "" {
		return Path{}, fmt.Errorf("invalid path %q: neither host nor distinguished name", path)
	}

	p.prefix = strings.TrimSuffix(path, dn)
	if p.Host != "" && !hasSlash {
		p.prefix += "/"
	}

	return p, nil
}

func splitHostPort(hostport string) (string, int, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, 0, nil
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port number: %s", portStr)
	}

	return host, port, nil
}

// UseTLS reports whether the scheme implies TLS from the first byte.
func (p Path) UseTLS() bool {
	return strings.EqualFold(p.Scheme, "ldaps") || p.Port == PortLDAPS || p.Port == PortGlobalCatalogSSL
}

// Prefix returns everything before the distinguished name. Parsed paths
// keep the prefix exactly as written so that derived paths compare equal
// to the caller's.
func (p Path) Prefix() string {
	if p.prefix != "" {
		return p.prefix
	}
	if p.Host == "" {
		return p.Scheme + "://"
	}
	return p.Scheme + "://" + p.hostport() + "/"
}

func (p Path) hostport() string {
	if p.Port == p.defaultPort() {
		return p.Host
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Path) defaultPort() int {
	switch strings.ToLower(p.Scheme) {
	case "ldaps":
		return PortLDAPS
	case "gc":
		return PortGlobalCatalog
	default:
		return PortLDAP
	}
}

// String returns the path in its canonical form.
func (p Path) String() string {
	return p.Prefix() + p.DN
}

// WithDN returns a path to dn on the same server.
func (p Path) WithDN(dn string) Path {
	p.DN = dn
	return p
}

// Child returns the path of the entry named rdn directly below p.
func (p Path) Child(rdn string) Path {
	if p.DN == "" {
		return p.WithDN(rdn)
	}
	return p.WithDN(rdn + "," + p.DN)
}

// DomainName returns the DNS domain named by the DC components of the
// path's DN, e.g. "example.com" for "OU=Users,DC=example,DC=com".
func (p Path) DomainName() string {
	return DomainNameFromDN(p.DN)
}

// DomainNameFromDN joins the DC components of dn with dots.
func DomainNameFromDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}

	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") {
				labels = append(labels, attr.Value)
			}
		}
	}
	return strings.Join(labels, ".")
}

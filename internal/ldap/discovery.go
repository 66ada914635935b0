package ldap

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// srvResolver is the subset of *net.Resolver used for discovery.
type srvResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// SRVDiscovery locates domain controllers for serverless paths using DNS
// SRV records.
type SRVDiscovery struct {
	ctx      context.Context // Logging context with LDAP subsystem
	resolver srvResolver
}

// NewSRVDiscovery creates a new SRV discovery instance.
func NewSRVDiscovery(ctx context.Context) *SRVDiscovery {
	return &SRVDiscovery{
		ctx:      ctx,
		resolver: net.DefaultResolver,
	}
}

// DiscoverServers returns the servers for a DNS domain in order of
// preference:
//  1. _ldaps._tcp.<domain> (LDAPS, used exclusively when present)
//  2. _ldap._tcp.<domain> (LDAP+StartTLS)
//  3. _gc._tcp.<domain> (Global Catalog)
//
// When no records exist the domain name itself is tried on 636 and 389.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	start := time.Now()
	services := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
		{"_gc._tcp." + domain, false},
	}

	var servers []*ServerInfo
	for _, svc := range services {
		found, err := d.lookupSRV(ctx, svc.name, svc.useTLS)
		if err != nil {
			tflog.SubsystemDebug(d.ctx, "ldap", "SRV lookup failed, continuing to next service", map[string]any{
				"service": svc.name,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, found...)

		// LDAPS servers are preferred over everything else
		if svc.useTLS {
			break
		}
	}

	if len(servers) == 0 {
		tflog.SubsystemDebug(d.ctx, "ldap", "No SRV records found, using fallback servers", map[string]any{
			"domain":      domain,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return fallbackServers(domain), nil
	}

	sortServersByPriority(servers)

	tflog.SubsystemDebug(d.ctx, "ldap", "Server discovery completed", map[string]any{
		"domain":       domain,
		"server_count": len(servers),
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	return servers, nil
}

// lookupSRV performs SRV record lookup for a specific service.
func (d *SRVDiscovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}

	return servers, nil
}

// fallbackServers uses the domain name itself on the standard Active
// Directory ports.
func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: PortLDAPS, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: PortLDAP, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by ascending priority and, within a
// priority, by descending weight (RFC 2782).
func sortServersByPriority(servers []*ServerInfo) {
	slices.SortStableFunc(servers, func(a, b *ServerInfo) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
}

// ValidateServerInfo validates server information.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}

	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}

	return nil
}

// ServerInfoToURL converts ServerInfo to LDAP URL.
func ServerInfoToURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}

	return scheme + "://" + net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
}

// serversForPath returns the servers a path can be served by: the host
// named in the path, or the discovered controllers of its domain.
func (d *SRVDiscovery) serversForPath(ctx context.Context, p Path) ([]*ServerInfo, error) {
	if p.Host != "" {
		server := &ServerInfo{
			Host:   p.Host,
			Port:   p.Port,
			UseTLS: p.UseTLS(),
			Weight: 100,
			Source: "path",
		}
		return []*ServerInfo{server}, ValidateServerInfo(server)
	}

	domain := p.DomainName()
	if domain == "" {
		return nil, fmt.Errorf("serverless path %q has no DC components to discover servers from", p.String())
	}

	servers, err := d.DiscoverServers(ctx, domain)
	if err != nil {
		return nil, err
	}

	// Global catalog paths are served on the GC port of each controller.
	if strings.EqualFold(p.Scheme, "gc") {
		for _, s := range servers {
			s.Port, s.UseTLS = PortGlobalCatalog, false
		}
	}

	return servers, nil
}

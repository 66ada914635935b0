package ldap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/adlib/directory"
)

// Store binds directory paths to LDAP connections. Every Bind dials a new
// connection which is released when the returned entry is closed.
type Store struct {
	ctx       context.Context // Logging context with LDAP subsystem
	config    *ConnectionConfig
	discovery *SRVDiscovery

	dial func(ctx context.Context, server *ServerInfo) (connection, error)
}

var _ directory.Store = (*Store)(nil)

// NewStore creates a store. A nil config selects DefaultConfig.
func NewStore(ctx context.Context, config *ConnectionConfig) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection configuration: %w", err)
	}

	ctx = newLogContext(ctx)

	s := &Store{
		ctx:       ctx,
		config:    config,
		discovery: NewSRVDiscovery(ctx),
	}
	s.dial = s.dialServer

	tflog.SubsystemDebug(ctx, subsystem, "LDAP store created", map[string]any{
		"timeout":     config.Timeout.String(),
		"use_tls":     config.UseTLS,
		"skip_tls":    config.SkipTLS,
		"auth_method": config.AuthMethod().String(),
		"max_retries": config.MaxRetries,
	})

	return s, nil
}

// Bind opens an entry for path authenticated as username. An empty
// username binds anonymously.
func (s *Store) Bind(ctx context.Context, path, username, password string) (directory.Entry, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, WrapError("bind", path, err)
	}

	servers, err := s.discovery.serversForPath(ctx, p)
	if err != nil {
		return nil, WrapError("bind", p.DN, NewConnectionError("server discovery failed", false, err))
	}

	conn, server, err := s.connect(ctx, servers)
	if err != nil {
		return nil, WrapError("bind", p.DN, err)
	}

	fields := map[string]any{
		"server":      ServerInfoToURL(server),
		"dn":          p.DN,
		"username":    username,
		"auth_method": s.authMethod(username),
	}

	if err := s.authenticate(conn, server, username, password); err != nil {
		fields["error"] = err.Error()
		LogConnectionEvent(s.ctx, "authentication_failed", fields)
		if closeErr := conn.Close(); closeErr != nil {
			tflog.SubsystemDebug(s.ctx, subsystem, "Failed to close connection", map[string]any{
				"error": closeErr.Error(),
			})
		}
		return nil, WrapError("bind", p.DN, err)
	}

	LogConnectionEvent(s.ctx, "authentication_success", fields)

	return newEntry(s, conn, p), nil
}

func (s *Store) authMethod(username string) string {
	if username == "" {
		return "anonymous"
	}
	return s.config.AuthMethod().String()
}

// authenticate binds conn as username. Anonymous access sends no bind
// request at all.
func (s *Store) authenticate(conn connection, server *ServerInfo, username, password string) error {
	if username == "" {
		return nil
	}

	if s.config.AuthMethod() == AuthMethodKerberos {
		return kerberosBind(conn, s.config, server, username, password)
	}

	return conn.Bind(username, password)
}

// connect tries each server in order, retrying the whole list with backoff.
func (s *Store) connect(ctx context.Context, servers []*ServerInfo) (connection, *ServerInfo, error) {
	var (
		conn   connection
		server *ServerInfo
	)

	err := s.withRetry(ctx, func() error {
		var errs *multierror.Error
		for _, candidate := range servers {
			c, err := s.dial(ctx, candidate)
			if err != nil {
				LogConnectionEvent(s.ctx, "connection_failed", map[string]any{
					"server": ServerInfoToURL(candidate),
					"source": candidate.Source,
					"error":  err.Error(),
				})
				errs = multierror.Append(errs, err)
				continue
			}

			LogConnectionEvent(s.ctx, "connection_established", map[string]any{
				"server": ServerInfoToURL(candidate),
				"source": candidate.Source,
			})
			conn, server = c, candidate
			return nil
		}
		return NewConnectionError("connection failed: no server reachable", true, errs.ErrorOrNil())
	})
	if err != nil {
		return nil, nil, err
	}

	return conn, server, nil
}

// dialServer connects to a single server, upgrading plain connections with
// StartTLS unless SkipTLS is set.
func (s *Store) dialServer(ctx context.Context, server *ServerInfo) (connection, error) {
	if err := ValidateServerInfo(server); err != nil {
		return nil, err
	}

	url := ServerInfoToURL(server)

	tlsConfig, err := s.config.tlsConfig(server.Host)
	if err != nil {
		return nil, err
	}

	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: s.config.Timeout}),
	}
	if server.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	if !server.UseTLS && !s.config.SkipTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			if s.config.UseTLS {
				_ = conn.Close()
				return nil, fmt.Errorf("StartTLS failed on %s: %w", url, err)
			}
			tflog.SubsystemWarn(ctx, subsystem, "StartTLS failed, continuing without TLS", map[string]any{
				"server": url,
				"error":  err.Error(),
			})
		}
	}

	conn.SetTimeout(s.config.Timeout)

	return conn, nil
}

// timeLimit is the server-side search time limit in seconds.
func (s *Store) timeLimit() int {
	return int(s.config.Timeout / time.Second)
}

// withRetry executes an operation with exponential backoff while its error
// is retryable.
func (s *Store) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := s.config.InitialBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			tflog.SubsystemDebug(s.ctx, subsystem, "Retrying operation", map[string]any{
				"attempt":    attempt,
				"max_retry":  s.config.MaxRetries,
				"backoff_ms": backoff.Milliseconds(),
				"last_error": lastErr.Error(),
			})
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				tflog.SubsystemInfo(s.ctx, subsystem, "Operation succeeded after retries", map[string]any{
					"total_attempts": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return err
		}

		// Don't wait after the last attempt
		if attempt == s.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			tflog.SubsystemWarn(s.ctx, subsystem, "Operation cancelled during retry", map[string]any{
				"context_error": ctx.Err().Error(),
				"attempt":       attempt + 1,
			})
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*s.config.BackoffFactor), s.config.MaxBackoff)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

package epp

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"zonecore/internal/dispatch"
	"zonecore/internal/ratelimit"
	"zonecore/internal/session"
	dErrors "zonecore/pkg/domain-errors"
)

// Server accepts registrar connections and runs one read/dispatch/write loop
// per connection.
type Server struct {
	serverID   string
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	codec      Codec

	tlsConfig   *tls.Config
	limiter     *ratelimit.Limiter
	idleTimeout time.Duration
	clock       func() time.Time
	logger      *slog.Logger

	wg sync.WaitGroup
}

type ServerOption func(*Server)

// WithTLS wraps accepted connections in TLS.
func WithTLS(cfg *tls.Config) ServerOption {
	return func(s *Server) { s.tlsConfig = cfg }
}

// WithPreLoginLimiter rate-limits commands on unauthenticated sessions by
// source IP. A denied source gets a 2502 response and the connection closes.
func WithPreLoginLimiter(l *ratelimit.Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// WithIdleTimeout bounds how long a connection may sit between frames. Should
// match the session manager's idle timeout.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTimeout = d }
}

func WithClock(clock func() time.Time) ServerOption {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(serverID string, dispatcher *dispatch.Dispatcher, sessions *session.Manager, opts ...ServerOption) *Server {
	s := &Server{
		serverID:   serverID,
		dispatcher: dispatcher,
		sessions:   sessions,
		clock:      time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until the context ends, then waits for the
// per-connection loops to drain.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if s.tlsConfig != nil {
		lis = tls.NewListener(lis, s.tlsConfig)
	}
	go func() {
		<-ctx.Done()
		lis.Close()
	}()
	s.logger.Info("listener started", "addr", lis.Addr().String())

	for {
		conn, err := lis.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sourceIP := remoteIP(conn)

	sess := s.sessions.Open(sourceIP)
	defer s.sessions.Close(sess.ID)

	greeting, err := Greeting(s.serverID, s.clock())
	if err != nil {
		s.logger.Error("greeting encode failed", "error", err)
		return
	}
	if err := WriteFrame(conn, greeting); err != nil {
		return
	}

	for {
		if s.idleTimeout > 0 {
			conn.SetReadDeadline(s.clock().Add(s.idleTimeout))
		}
		payload, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("connection read ended", "source_ip", sourceIP, "error", err)
			}
			return
		}

		// The manager may have expired the session between frames.
		cur, ok := s.sessions.Get(sess.ID)
		if !ok {
			s.respond(conn, dispatch.Response{
				Code:    dispatch.CodeFailedClosing,
				Message: dispatch.Text(dispatch.CodeFailedClosing),
				Reason:  "session expired",
			})
			return
		}

		cmd, hello, err := s.codec.Decode(payload)
		if err != nil {
			s.respond(conn, dispatch.Response{
				Code:    dispatch.CodeSyntaxError,
				Message: dispatch.Text(dispatch.CodeSyntaxError),
				Reason:  dErrors.MessageOf(err),
			})
			continue
		}
		if hello {
			g, err := Greeting(s.serverID, s.clock())
			if err != nil || WriteFrame(conn, g) != nil {
				return
			}
			continue
		}

		if s.limiter != nil && !cur.Authenticated {
			d, err := s.limiter.Allow(ctx, sourceIP)
			if err == nil && !d.Allowed {
				s.respond(conn, dispatch.Response{
					Code:    dispatch.CodeSessionLimit,
					Message: dispatch.Text(dispatch.CodeSessionLimit),
					Reason:  "rate limit exceeded",
					ClTRID:  cmd.ClTRID,
				})
				return
			}
		}

		out := s.dispatcher.Dispatch(ctx, sess.ID, payload, cmd)
		if out == nil {
			s.respond(conn, dispatch.Response{
				Code:    dispatch.CodeFailedClosing,
				Message: dispatch.Text(dispatch.CodeFailedClosing),
			})
			return
		}
		if err := WriteFrame(conn, out); err != nil {
			return
		}
		if cmd.Verb == dispatch.VerbLogout {
			return
		}
	}
}

func (s *Server) respond(conn net.Conn, res dispatch.Response) {
	b, err := s.codec.Response(res)
	if err != nil {
		s.logger.Error("response encode failed", "error", err)
		return
	}
	WriteFrame(conn, b)
}

func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

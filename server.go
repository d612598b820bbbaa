package moqt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/moqtransport/moqt/clock"
	"github.com/moqtransport/moqt/internal/connreg"
	"github.com/moqtransport/moqt/session"
	"github.com/moqtransport/moqt/transport"
	"github.com/moqtransport/moqt/wire"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr      string
	TLSConfig *tls.Config
	// SupportedVersions are matched against each client's CLIENT_SETUP
	// offer; the highest mutually supported version is selected. Defaults
	// to []uint64{wire.Version}.
	SupportedVersions []uint64
	// MaxRequestID, if non-zero, is advertised to every accepted client
	// right after setup completes.
	MaxRequestID uint64
	// NewHooks builds the per-connection Hooks for a just-accepted
	// connection. If nil, every connection gets an empty session.Hooks
	// (SUBSCRIBE rejected with TRACK_NOT_EXIST, ANNOUNCE always accepted).
	NewHooks func(conn transport.Connection) session.Hooks
	Log      *slog.Logger
}

// Server accepts MoQT connections and runs one session.Engine per
// connection under a shared errgroup. A connection's error is logged and
// ends only that connection. The errgroup mirrors
// cmd/prism/main.go's errgroup-supervised component lifecycle generalized
// from "one goroutine per fixed component" to "one goroutine per accepted
// connection, each itself spawning its control and data sub-goroutines".
type Server struct {
	cfg   ServerConfig
	ln    transport.Listener
	conns *connreg.Registry
	log   *slog.Logger
}

// Listen starts a QUIC listener on cfg.Addr with cfg.TLSConfig.
func Listen(cfg ServerConfig) (*Server, error) {
	if cfg.TLSConfig == nil {
		return nil, fmt.Errorf("moqt: ServerConfig.TLSConfig is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	ln, err := transport.Listen(cfg.Addr, cfg.TLSConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("moqt: listen %s: %w", cfg.Addr, err)
	}
	return &Server{cfg: cfg, ln: ln, conns: connreg.New(log), log: log}, nil
}

// Addr returns the listener's local address.
func (s *Server) Addr() string { return s.ln.Addr() }

// Serve accepts connections until ctx is cancelled, running each under its
// own errgroup-managed goroutine. It returns the accept loop's error
// (ctx cancellation included) once every connection goroutine has
// returned; connection errors are logged, not returned.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			conn, err := s.ln.Accept(ctx)
			if err != nil {
				return fmt.Errorf("moqt: accept: %w", err)
			}
			g.Go(func() error {
				s.serveConn(ctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	s.ln.Close()
	return err
}

func (s *Server) serveConn(ctx context.Context, conn transport.Connection) {
	key := conn.RemoteAddr()
	if _, ok := s.conns.Add(key); !ok {
		conn.CloseWithError(0, "duplicate connection")
		return
	}
	defer s.conns.Remove(key)

	log := s.log.With("remote", key)

	versions := s.cfg.SupportedVersions
	if len(versions) == 0 {
		versions = []uint64{wire.Version}
	}

	tick := clock.NewRealTicker(ctx, 0)
	engine := session.NewEngine(session.RoleServer, conn, tick, log)
	engine.SupportedVersions = versions
	engine.MaxRequestID = s.cfg.MaxRequestID
	if s.cfg.NewHooks != nil {
		engine.Hooks = s.cfg.NewHooks(conn)
	}

	go engine.ServeDatagrams(ctx)

	if err := engine.RunServer(ctx); err != nil {
		log.Info("connection ended", "error", err)
	}
}

// Close closes the listener, causing Serve's accept loop to return.
func (s *Server) Close() error { return s.ln.Close() }

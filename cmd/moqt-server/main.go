// Command moqt-server runs a standalone MoQT server: it generates a
// self-signed certificate for local development, listens for QUIC
// connections, and accepts ANNOUNCE from any connecting client. It sets no
// hooks, so every SUBSCRIBE and FETCH is answered with TRACK_NOT_EXIST. It
// exists to exercise Server end to end, the way cmd/prism
// exercised the teacher's distribution server.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moqtransport/moqt"
	"github.com/moqtransport/moqt/internal/devcert"
)

func main() {
	addr := flag.String("addr", ":4433", "address to listen on")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	log.Info("generating self-signed certificate")
	cert, err := devcert.Generate(0)
	if err != nil {
		log.Error("failed to generate certificate", "error", err)
		os.Exit(1)
	}
	log.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	srv, err := moqt.Listen(moqt.ServerConfig{
		Addr: *addr,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert.TLSCert},
			NextProtos:   []string{"moq-00"},
		},
		Log: log,
	})
	if err != nil {
		log.Error("failed to start listener", "error", err)
		os.Exit(1)
	}

	log.Info("moqt server listening", "addr", srv.Addr())
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

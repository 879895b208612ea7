package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	"github.com/obsidianstack/licensewatch/server/internal/alerts"
	"github.com/obsidianstack/licensewatch/server/internal/api"
	"github.com/obsidianstack/licensewatch/server/internal/auth"
	"github.com/obsidianstack/licensewatch/server/internal/config"
	"github.com/obsidianstack/licensewatch/server/internal/metrics"
	"github.com/obsidianstack/licensewatch/server/internal/probe"
	"github.com/obsidianstack/licensewatch/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config, configPath, uiDir string) error {
	m := cfg.Monitoring
	slog.Info("config loaded",
		"http_port", m.HTTPPort,
		"grpc_port", m.GRPCPort,
		"auth_mode", m.Auth.Mode,
		"state_backend", m.State.Backend,
		"interval", m.Alerts.Interval,
		"connectors", len(m.Alerts.Connectors),
	)

	st, err := openStore(ctx, m.State)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	reg := metrics.New()
	reg.SetFiring(st.FiringCount())
	health := probe.New()

	dispatcher := alerts.NewDispatcher(m.Alerts.Throttle, m.Alerts.Connectors)
	dispatcher.OnSchedule = reg.ObserveAction
	if n := primeThrottle(dispatcher, st); n > 0 {
		slog.Info("throttle primed from restored state", "firing_instances", n)
	}

	hub := ws.New(st, 5*time.Second)

	clusters, legacy := fetchers(m)
	engine := alerts.NewEngine(alerts.EngineConfig{
		Clusters: clusters,
		Legacy:   legacy,
		States:   st,
		Actions:  dispatcher,
		Interval: m.Alerts.Interval,
		Options:  evaluatorOptions(m),
		OnCycle: func(rep alerts.CycleReport) {
			reg.ObserveCycle(rep)
			health.ObserveCycle(rep)
			hub.Notify()
		},
	})

	checker := auth.NewChecker(m.Auth)

	// gRPC health probe.
	var grpcSrv *grpc.Server
	if m.GRPCPort > 0 {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(checker.UnaryInterceptor()))
		health.Register(grpcSrv)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", m.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen on grpc port %d: %w", m.GRPCPort, err)
		}
		go func() {
			slog.Info("gRPC health probe listening", "port", m.GRPCPort)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", checker.Middleware(api.New(st, engine, dispatcher), "/api/v1/health"))
	httpMux.Handle("/ws/alerts", checker.Middleware(hub))
	httpMux.Handle("/metrics", reg)
	if uiDir != "" {
		httpMux.Handle("/", spaHandler(uiDir))
		slog.Info("serving UI static files", "dir", uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", m.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", m.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	go hub.Run(ctx)
	go engine.Run(ctx)
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			engine.SetOptions(evaluatorOptions(next.Monitoring))
			dispatcher.SetConnectors(next.Monitoring.Alerts.Connectors)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("HTTP server stopped", "err", err)
	}

	slog.Info("licensewatch shutting down")
	health.Shutdown()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "err", err)
	}
	dispatcher.Wait()
	return nil
}

// spaHandler serves files from dir, falling back to index.html for unknown
// paths so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}

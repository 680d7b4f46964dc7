// Package server implements the http interface of a platform node.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/haxdai/SWBPlatform-sub000/internal/platform"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

// Server implements an [http.Handler] that exposes the models of a platform.
type Server struct {
	Platform *platform.Platform

	// ReadOnly rejects writes through the store endpoints
	ReadOnly bool

	Logger *slog.Logger

	init sync.Once
	mux  mux.Router
}

// Prepare registers all routes.
// It is called automatically on first use.
func (server *Server) Prepare() {
	server.init.Do(func() {
		if server.Logger == nil {
			server.Logger = server.Platform.Logger()
		}

		server.mux.HandleFunc("/", server.htmlIndex)
		server.mux.HandleFunc("/models/{model}", server.htmlModel)
		server.mux.HandleFunc("/models/{model}/class", server.htmlClass).Queries("uri", "{uri:.+}")
		server.mux.HandleFunc("/models/{model}/object", server.htmlObject).Queries("uri", "{uri:.+}")

		server.mux.HandleFunc("/api/v1/models", server.jsonModels)
		server.mux.HandleFunc("/api/v1/models/{model}/classes", server.jsonClasses)
		server.mux.HandleFunc("/api/v1/models/{model}/instances", server.jsonInstances).Queries("class", "{class:.+}")
		server.mux.HandleFunc("/api/v1/models/{model}/object", server.jsonObject).Queries("uri", "{uri:.+}")
		server.mux.HandleFunc("/api/v1/models/{model}/resolve", server.resolve).Queries("uri", "{uri:.+}")
		server.mux.HandleFunc("/api/v1/nodes", server.jsonNodes)

		store := &StoreAPI{
			Store:    server.Platform.Store,
			ReadOnly: server.ReadOnly,
			Logger:   server.Logger,
		}
		store.Register(&server.mux, "/store")

		server.mux.Handle("/metrics", promhttp.HandlerFor(server.Platform.Gatherer(), promhttp.HandlerOpts{}))
	})
}

func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.Prepare()
	server.mux.ServeHTTP(w, r)
}

// Listen listens on addr, accepting at most maxConnections simultaneous connections.
// maxConnections <= 0 means no limit.
func Listen(addr string, maxConnections int) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", addr, err)
	}
	if maxConnections > 0 {
		listener = netutil.LimitListener(listener, maxConnections)
	}
	return listener, nil
}

// Serve serves requests on listener until ctx is cancelled.
// Outstanding requests are given shutdownTimeout to complete.
func (server *Server) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	server.Prepare()

	srv := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		server.Logger.Info("shutting down server")
		done <- srv.Shutdown(shutdownCtx)
	}()

	server.Logger.Info("serving", slog.String("addr", listener.Addr().String()))
	err := srv.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

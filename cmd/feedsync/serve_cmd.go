package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/feedsync/remote/httpremote"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the configured remote over HTTP",
		GroupID: GroupService,
		Args:    cobra.NoArgs,
		Long: `Serve the configured remote client over the collection HTTP API.

In mem mode this exposes the demo service so other processes can run with
remote.mode = "http". With an entity cache configured, single record reads
are answered from the cache. /metrics is served when metrics are enabled.`,
		Example: `  feedsync serve
  feedsync serve --addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func (c *cli) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(c.accessLog)
	if c.app.reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.app.reg, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Mount("/", httpremote.Handler(c.app.rc))
	return r
}

func (c *cli) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		c.zl.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (c *cli) serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           c.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.zl.Info("serving", zap.String("addr", ln.Addr().String()), zap.String("remote", c.cfg.Remote.Mode))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

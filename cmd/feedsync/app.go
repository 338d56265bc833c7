package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/codec"
	"github.com/unkn0wn-root/feedsync/genstore"
	asynchook "github.com/unkn0wn-root/feedsync/hooks/async"
	"github.com/unkn0wn-root/feedsync/hooks/prom"
	"github.com/unkn0wn-root/feedsync/internal/config"
	"github.com/unkn0wn-root/feedsync/provider"
	"github.com/unkn0wn-root/feedsync/provider/bigcache"
	"github.com/unkn0wn-root/feedsync/provider/redis"
	"github.com/unkn0wn-root/feedsync/provider/ristretto"
	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/remote/cached"
	"github.com/unkn0wn-root/feedsync/remote/httpremote"
	"github.com/unkn0wn-root/feedsync/remote/memremote"
	"github.com/unkn0wn-root/feedsync/remote/traced"
	"github.com/unkn0wn-root/feedsync/sloghooks"
	"github.com/unkn0wn-root/feedsync/social"
)

// app is everything one command invocation needs, built from the config.
type app struct {
	cfg  config.Config
	zl   *zap.Logger
	log  feedsync.Logger
	reg  *prometheus.Registry // nil unless metrics are enabled
	mem  *memremote.Client    // nil in http mode
	rc   remote.Client
	st   *feedsync.Store
	soc  *social.Client
	hook *asynchook.Hooks // nil when no hook sink is configured

	closers []func(context.Context) error
}

// newApp builds the stack. On error everything built so far is closed.
func newApp(cfg config.Config, zl *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, zl: zl}
	if err := a.build(); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) build() (err error) {
	cfg := a.cfg

	if a.log, err = dataLogger(cfg.Log, a.zl, os.Stderr); err != nil {
		return err
	}
	hooks := a.buildHooks()

	if a.rc, err = a.buildRemote(); err != nil {
		return err
	}

	a.st = feedsync.New(feedsync.Options{
		Logger:       a.log,
		Hooks:        hooks,
		FetchTimeout: cfg.Feed.FetchTimeout.Duration,
	})
	a.closers = append(a.closers, a.st.Close)

	a.soc, err = social.New(social.Options{
		Remote:       a.rc,
		Store:        a.st,
		Session:      social.Session{UserID: cfg.Session.UserID, Username: cfg.Session.Username},
		Logger:       a.log,
		Hooks:        hooks,
		Debounce:     cfg.Feed.Debounce.Duration,
		WriteTimeout: cfg.Remote.Timeout.Duration,
		AwaitRefetch: cfg.Feed.AwaitRefetch,
	})
	return err
}

// buildHooks collects the configured sinks behind one async queue. It
// returns nil when there are none, leaving the store on NopHooks.
func (a *app) buildHooks() feedsync.Hooks {
	var sinks fanout
	if a.cfg.Telemetry.Metrics {
		a.reg = prometheus.NewRegistry()
		a.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sinks = append(sinks, prom.New(prom.WithRegistry(a.reg)))
	}
	if a.cfg.Log.Level == "debug" {
		sinks = append(sinks, sloghooks.New(newSlog(a.cfg.Log, os.Stderr), sloghooks.Options{
			SlowFetch: a.cfg.Remote.Timeout.Duration / 10,
		}))
	}
	if len(sinks) == 0 {
		return nil
	}
	a.hook = asynchook.New(sinks, 1, 1024)
	return a.hook
}

// buildRemote stacks the remote client: service, then entity cache, then
// tracing outermost so cache hits show up as short spans.
func (a *app) buildRemote() (remote.Client, error) {
	var rc remote.Client
	switch a.cfg.Remote.Mode {
	case "mem":
		a.mem = memremote.New(memremote.Options{Latency: a.cfg.Remote.Latency.Duration})
		if a.cfg.Remote.Seed {
			if err := seedDemo(a.mem); err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
		rc = a.mem
	case "http":
		hc, err := httpremote.New(httpremote.Options{
			BaseURL:    a.cfg.Remote.BaseURL,
			HTTPClient: &http.Client{Timeout: a.cfg.Remote.Timeout.Duration},
		})
		if err != nil {
			return nil, err
		}
		rc = hc
	default:
		return nil, fmt.Errorf("unknown remote mode %q", a.cfg.Remote.Mode)
	}

	if a.cfg.Cache.Provider != "none" {
		c, err := a.buildCache(rc)
		if err != nil {
			return nil, fmt.Errorf("entity cache: %w", err)
		}
		rc = c
	}

	if a.cfg.Telemetry.Tracing {
		rc = traced.New(rc, traced.WithTracerProvider(otel.GetTracerProvider()))
	}
	return rc, nil
}

func (a *app) buildCache(inner remote.Client) (*cached.Client, error) {
	cc := a.cfg.Cache
	cdc, err := codec.ByName[remote.Document](cc.Codec)
	if err != nil {
		return nil, err
	}

	var (
		p    provider.Provider
		gens genstore.Store
	)
	switch cc.Provider {
	case "ristretto":
		p, err = ristretto.New(ristretto.DefaultConfig(cc.MaxCost))
	case "bigcache":
		p, err = bigcache.New(bigcache.Config{LifeWindow: cc.TTL.Duration})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cc.RedisAddr})
		if perr := rdb.Ping(context.Background()).Err(); perr != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cc.RedisAddr, perr)
		}
		p, err = redis.New(redis.Config{Client: rdb, CloseClient: true})
		gens = genstore.NewRedis(rdb, cc.Namespace, cc.GenRetention.Duration)
	default:
		return nil, fmt.Errorf("unknown provider %q", cc.Provider)
	}
	if err != nil {
		return nil, err
	}

	c, err := cached.New(inner, cached.Options{
		Namespace:  cc.Namespace,
		Provider:   p,
		Codec:      cdc,
		GenStore:   gens,
		Logger:     a.log,
		DefaultTTL: cc.TTL.Duration,
		ManyTTL:    cc.TTL.Duration,
	})
	if err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

// Close releases everything in reverse order of construction and flushes the
// hook queue last so final events are delivered.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.hook != nil {
		a.hook.Close()
		if n := a.hook.Dropped(); n > 0 {
			a.zl.Warn("hook events dropped", zap.Uint64("count", n))
		}
	}
	return errors.Join(errs...)
}

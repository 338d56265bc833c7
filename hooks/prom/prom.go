// Package prom exports feedsync.Hooks events as Prometheus metrics.
//
// Metrics (namespace "feedsync" by default):
//   - fetches_total{resource,result}: settled loaders, result ok or an error kind
//   - fetch_duration_seconds{resource}: loader latency
//   - fetch_deduped_total{resource}: callers that joined an in-flight fetch
//   - entries_discarded_total{reason}
//   - invalidations_total / invalidated_entries_total{action}
//   - mutations_total{op,result}
//   - toggle_reverts_total
//
// Labels carry the resource only; key parameters (ids, search terms) are
// never exported.
package prom

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/feedsync"
)

type Config struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	Registry    prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(ns string) Option { return func(c *Config) { c.Namespace = ns } }

func WithSubsystem(s string) Option { return func(c *Config) { c.Subsystem = s } }

func WithConstLabels(l prometheus.Labels) Option { return func(c *Config) { c.ConstLabels = l } }

func WithBuckets(b []float64) Option { return func(c *Config) { c.Buckets = b } }

// WithRegistry registers the collectors with r instead of the default registerer.
func WithRegistry(r prometheus.Registerer) Option { return func(c *Config) { c.Registry = r } }

type Hooks struct {
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	deduped      *prometheus.CounterVec
	discarded    *prometheus.CounterVec
	invalidated  prometheus.Counter
	affected     *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	reverts      prometheus.Counter
}

var _ feedsync.Hooks = (*Hooks)(nil)

// New registers the collectors. Registering twice with one registry panics,
// as promauto does.
func New(opts ...Option) *Hooks {
	cfg := Config{
		Namespace: "feedsync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, o := range opts {
		o(&cfg)
	}
	f := promauto.With(cfg.Registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}, labels)
	}

	return &Hooks{
		fetches: counter("fetches_total", "Settled loaders by resource and result.", "resource", "result"),
		fetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "fetch_duration_seconds",
			Help:        "Loader latency in seconds.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"resource"}),
		deduped:   counter("fetch_deduped_total", "Callers that joined an in-flight fetch.", "resource"),
		discarded: counter("entries_discarded_total", "Entries dropped from the store by reason.", "reason"),
		invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "invalidations_total",
			Help:        "Invalidate calls.",
			ConstLabels: cfg.ConstLabels,
		}),
		affected:  counter("invalidated_entries_total", "Entries hit by invalidation, refetched or discarded.", "action"),
		mutations: counter("mutations_total", "Mutations by op and result.", "op", "result"),
		reverts: f.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "toggle_reverts_total",
			Help:        "Optimistic toggles rolled back after a failed write.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func resourceOf(key string) string {
	r, _, _ := strings.Cut(key, ":")
	return r
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return feedsync.KindOf(err).String()
}

func (h *Hooks) FetchStarted(string) {}

func (h *Hooks) FetchDeduped(key string) {
	h.deduped.WithLabelValues(resourceOf(key)).Inc()
}

func (h *Hooks) FetchSettled(key string, err error, took time.Duration) {
	r := resourceOf(key)
	h.fetches.WithLabelValues(r, result(err)).Inc()
	h.fetchLatency.WithLabelValues(r).Observe(took.Seconds())
}

func (h *Hooks) EntryDiscarded(_, reason string) {
	h.discarded.WithLabelValues(reason).Inc()
}

func (h *Hooks) Invalidated(_ string, refetched, discarded int) {
	h.invalidated.Inc()
	h.affected.WithLabelValues("refetched").Add(float64(refetched))
	h.affected.WithLabelValues("discarded").Add(float64(discarded))
}

func (h *Hooks) MutationSettled(op string, err error) {
	h.mutations.WithLabelValues(op, result(err)).Inc()
}

func (h *Hooks) ToggleReverted(error) { h.reverts.Inc() }

// Package traced wraps a remote.Client so every call runs in an
// OpenTelemetry span.
package traced

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

const defaultTracerName = "github.com/unkn0wn-root/feedsync/remote"

// Attribute keys set on spans.
const (
	AttrResource  = attribute.Key("feedsync.resource")
	AttrOp        = attribute.Key("feedsync.op")
	AttrID        = attribute.Key("feedsync.id")
	AttrCursor    = attribute.Key("feedsync.cursor")
	AttrPageSize  = attribute.Key("feedsync.page_size")
	AttrResults   = attribute.Key("feedsync.results")
	AttrErrorKind = attribute.Key("feedsync.error_kind")
)

type config struct {
	provider trace.TracerProvider
	name     string
	attrs    []attribute.KeyValue
}

// Option configures the tracing wrapper.
type Option func(*config)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.provider = tp }
}

// WithTracerName sets the instrumentation name.
func WithTracerName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithAttributes adds attrs to every span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// Client traces calls to an inner remote.Client.
type Client struct {
	inner  remote.Client
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

var (
	_ remote.Client      = (*Client)(nil)
	_ remote.BatchGetter = (*Client)(nil)
)

func New(inner remote.Client, opts ...Option) *Client {
	cfg := config{name: defaultTracerName}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.provider == nil {
		cfg.provider = otel.GetTracerProvider()
	}
	return &Client{inner: inner, tracer: cfg.provider.Tracer(cfg.name), attrs: cfg.attrs}
}

func (c *Client) start(ctx context.Context, method, resource string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(c.attrs)+len(attrs)+1)
	all = append(all, c.attrs...)
	all = append(all, AttrResource.String(resource))
	all = append(all, attrs...)
	return c.tracer.Start(ctx, "remote."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

func finish(span trace.Span, err error, results int) {
	if results >= 0 {
		span.SetAttributes(AttrResults.Int(results))
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorKind.String(feedsync.KindOf(err).String()))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (c *Client) FetchPage(ctx context.Context, resource string, cursor feedsync.Cursor, pageSize int) (feedsync.Page[remote.Document], error) {
	ctx, span := c.start(ctx, "FetchPage", resource, AttrCursor.String(string(cursor)), AttrPageSize.Int(pageSize))
	pg, err := c.inner.FetchPage(ctx, resource, cursor, pageSize)
	finish(span, err, len(pg.Items))
	return pg, err
}

func (c *Client) Search(ctx context.Context, resource, term string) ([]remote.Document, error) {
	// the term is user input; only its length is recorded
	ctx, span := c.start(ctx, "Search", resource, attribute.Int("feedsync.term_len", len(term)))
	docs, err := c.inner.Search(ctx, resource, term)
	finish(span, err, len(docs))
	return docs, err
}

func (c *Client) Where(ctx context.Context, resource, field, value string) ([]remote.Document, error) {
	ctx, span := c.start(ctx, "Where", resource, attribute.String("feedsync.field", field))
	docs, err := c.inner.Where(ctx, resource, field, value)
	finish(span, err, len(docs))
	return docs, err
}

func (c *Client) Mutate(ctx context.Context, resource, op string, payload remote.Document) (remote.Document, error) {
	ctx, span := c.start(ctx, "Mutate", resource, AttrOp.String(op), AttrID.String(payload.ID()))
	d, err := c.inner.Mutate(ctx, resource, op, payload)
	finish(span, err, -1)
	return d, err
}

func (c *Client) GetByID(ctx context.Context, resource, id string) (remote.Document, error) {
	ctx, span := c.start(ctx, "GetByID", resource, AttrID.String(id))
	d, err := c.inner.GetByID(ctx, resource, id)
	finish(span, err, -1)
	return d, err
}

// GetMany uses the inner client's batch path when it has one.
func (c *Client) GetMany(ctx context.Context, resource string, ids []string) (map[string]remote.Document, error) {
	ctx, span := c.start(ctx, "GetMany", resource, attribute.Int("feedsync.ids", len(ids)))
	out, err := remote.GetMany(ctx, c.inner, resource, ids)
	finish(span, err, len(out))
	return out, err
}

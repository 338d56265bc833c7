package traced

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/remote/memremote"
)

// recorder is a minimal TracerProvider that keeps ended spans.
type recorder struct {
	embedded.TracerProvider

	mu    sync.Mutex
	spans []*recSpan
}

func (r *recorder) Tracer(string, ...trace.TracerOption) trace.Tracer { return recTracer{rec: r} }

func (r *recorder) ended() []*recSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*recSpan(nil), r.spans...)
}

type recTracer struct {
	embedded.Tracer
	rec *recorder
}

func (t recTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	_, base := noop.NewTracerProvider().Tracer("").Start(ctx, name)
	s := &recSpan{Span: base, rec: t.rec, name: name, attrs: map[attribute.Key]attribute.Value{}}
	s.SetAttributes(cfg.Attributes()...)
	return trace.ContextWithSpan(ctx, s), s
}

type recSpan struct {
	trace.Span
	rec *recorder

	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	errs   int
}

func (s *recSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}
func (s *recSpan) SetStatus(c codes.Code, _ string)               { s.status = c }
func (s *recSpan) RecordError(error, ...trace.EventOption)         { s.errs++ }
func (s *recSpan) End(...trace.SpanEndOption) {
	s.rec.mu.Lock()
	s.rec.spans = append(s.rec.spans, s)
	s.rec.mu.Unlock()
}

func TestSpansCarryCallDetails(t *testing.T) {
	mem := memremote.New(memremote.Options{})
	assert.Equal(t, mem.Seed(remote.Posts, remote.Document{"$id": "p1", "creator": "u1", "content": "a"}), nil)
	rec := &recorder{}
	c := New(mem, WithTracerProvider(rec), WithAttributes(attribute.String("service", "test")))
	ctx := context.Background()

	_, err := c.FetchPage(ctx, remote.Posts, feedsync.NoCursor, 15)
	assert.Equal(t, err, nil)
	_, err = c.GetByID(ctx, remote.Posts, "missing")
	assert.Equal(t, errors.Is(err, feedsync.ErrNotFound), true)

	spans := rec.ended()
	assert.Equal(t, len(spans), 2)

	page := spans[0]
	assert.Equal(t, page.name, "remote.FetchPage")
	assert.Equal(t, page.attrs[AttrResource].AsString(), remote.Posts)
	assert.Equal(t, page.attrs[AttrPageSize].AsInt64(), int64(15))
	assert.Equal(t, page.attrs[AttrResults].AsInt64(), int64(1))
	assert.Equal(t, page.attrs["service"].AsString(), "test")
	assert.Equal(t, page.status, codes.Ok)

	get := spans[1]
	assert.Equal(t, get.name, "remote.GetByID")
	assert.Equal(t, get.status, codes.Error)
	assert.Equal(t, get.errs, 1)
	assert.Equal(t, get.attrs[AttrErrorKind].AsString(), "not_found")
}

func TestGetManyAndMutateSpans(t *testing.T) {
	mem := memremote.New(memremote.Options{})
	assert.Equal(t, mem.Seed(remote.Users,
		remote.Document{"$id": "u1", "username": "a"},
		remote.Document{"$id": "u2", "username": "b"},
	), nil)
	rec := &recorder{}
	c := New(mem, WithTracerProvider(rec), WithTracerName("test"))
	ctx := context.Background()

	got, err := c.GetMany(ctx, remote.Users, []string{"u1", "u2"})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 2)

	_, err = c.Mutate(ctx, remote.Users, remote.OpUpdate, remote.Document{"$id": "u1", "bio": "x"})
	assert.Equal(t, err, nil)

	spans := rec.ended()
	// GetMany falls back to GetByID on the inner client, which is not traced
	assert.Equal(t, len(spans), 2)
	assert.Equal(t, spans[0].name, "remote.GetMany")
	assert.Equal(t, spans[0].attrs[AttrResults].AsInt64(), int64(2))
	assert.Equal(t, spans[1].attrs[AttrOp].AsString(), remote.OpUpdate)
	assert.Equal(t, spans[1].attrs[AttrID].AsString(), "u1")
}

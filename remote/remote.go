// Package remote is the boundary to the remote collection service. Raw
// records cross it as Documents; callers validate them into typed records
// (Post, User, Booking, Save) before use.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/feedsync"
)

// Collections served by the remote service.
const (
	Posts    = "posts"
	Users    = "users"
	Bookings = "bookings"
	Saves    = "saves"
)

// Mutation ops understood by Client.Mutate.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Reserved document fields.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// Document is one raw record as the service returns it. Values are
// JSON-shaped: strings, float64, bool, nil, []any and map[string]any.
type Document map[string]any

// ID returns the document's $id, or "" when absent.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Normalize rewrites v (a Document, struct or map) into JSON shape so every
// codec and transport sees the same value types.
func Normalize(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("remote: normalize: %w", err)
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("remote: normalize: %w", err)
	}
	return d, nil
}

// Client talks to the remote collection service.
//
// Failures are *feedsync.RemoteError values: NotFound for unknown ids,
// Validation for rejected payloads, Network for transport failures.
type Client interface {
	// FetchPage returns up to pageSize documents starting after cursor,
	// newest first. Next is feedsync.NoCursor when nothing follows.
	FetchPage(ctx context.Context, resource string, cursor feedsync.Cursor, pageSize int) (feedsync.Page[Document], error)

	// Search returns documents whose content matches term.
	Search(ctx context.Context, resource, term string) ([]Document, error)

	// Where returns documents whose field equals value.
	Where(ctx context.Context, resource, field, value string) ([]Document, error)

	// Mutate applies op (OpCreate, OpUpdate, OpDelete) with payload. Update
	// and delete address the document by payload[FieldID].
	Mutate(ctx context.Context, resource, op string, payload Document) (Document, error)

	GetByID(ctx context.Context, resource, id string) (Document, error)
}

// BatchGetter is implemented by clients that can load many documents in one
// call. Missing ids are absent from the result; err reports the failures.
type BatchGetter interface {
	GetMany(ctx context.Context, resource string, ids []string) (map[string]Document, error)
}

// GetMany uses c's BatchGetter when it has one and falls back to GetByID per
// id otherwise. Ids that fail to load are left out; their errors are joined.
func GetMany(ctx context.Context, c Client, resource string, ids []string) (map[string]Document, error) {
	if bg, ok := c.(BatchGetter); ok {
		return bg.GetMany(ctx, resource, ids)
	}
	out := make(map[string]Document, len(ids))
	var errs []error
	for _, id := range dedupe(ids) {
		d, err := c.GetByID(ctx, resource, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[id] = d
	}
	return out, errors.Join(errs...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package httpremote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

const maxBody = 8 << 20

// Options configure a Client. BaseURL is required.
type Options struct {
	BaseURL    string       // e.g. https://api.example.com
	HTTPClient *http.Client // nil => http.DefaultClient
	Header     http.Header  // added to every request (e.g. an API key)
}

// Client calls the collection service over HTTP.
type Client struct {
	base   *url.URL
	hc     *http.Client
	header http.Header
}

var _ remote.Client = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("httpremote: base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpremote: base URL: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, hc: hc, header: opts.Header.Clone()}, nil
}

func (c *Client) FetchPage(ctx context.Context, resource string, cursor feedsync.Cursor, pageSize int) (feedsync.Page[remote.Document], error) {
	q := url.Values{"limit": {strconv.Itoa(pageSize)}}
	if cursor != feedsync.NoCursor {
		q.Set("cursor", string(cursor))
	}
	var body listBody
	if err := c.do(ctx, "fetchPage", resource, "", http.MethodGet, c.path(resource), q, nil, &body); err != nil {
		return feedsync.Page[remote.Document]{}, err
	}
	return feedsync.Page[remote.Document]{Items: body.Documents, Next: feedsync.Cursor(body.Next)}, nil
}

func (c *Client) Search(ctx context.Context, resource, term string) ([]remote.Document, error) {
	var body listBody
	err := c.do(ctx, "search", resource, "", http.MethodGet, c.path(resource, "search"), url.Values{"q": {term}}, nil, &body)
	return body.Documents, err
}

func (c *Client) Where(ctx context.Context, resource, field, value string) ([]remote.Document, error) {
	var body listBody
	q := url.Values{"field": {field}, "value": {value}}
	err := c.do(ctx, "where", resource, "", http.MethodGet, c.path(resource, "where"), q, nil, &body)
	return body.Documents, err
}

func (c *Client) GetByID(ctx context.Context, resource, id string) (remote.Document, error) {
	var d remote.Document
	if err := c.do(ctx, "getById", resource, id, http.MethodGet, c.path(resource, id), nil, nil, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Client) Mutate(ctx context.Context, resource, op string, payload remote.Document) (remote.Document, error) {
	mop := "mutate:" + op
	var method, path string
	switch op {
	case remote.OpCreate:
		method, path = http.MethodPost, c.path(resource)
	case remote.OpUpdate:
		method, path = http.MethodPatch, c.path(resource, payload.ID())
	case remote.OpDelete:
		method, path = http.MethodDelete, c.path(resource, payload.ID())
	default:
		return nil, feedsync.ValidationError(mop, resource, fmt.Errorf("unknown op %q", op))
	}
	if op != remote.OpCreate && payload.ID() == "" {
		return nil, feedsync.ValidationError(mop, resource, errors.New("payload has no $id"))
	}
	var d remote.Document
	if err := c.do(ctx, mop, resource, payload.ID(), method, path, nil, payload, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Client) path(parts ...string) string {
	return c.base.Path + "/v1/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, op, resource, id, method, path string, q url.Values, in, out any) error {
	u := *c.base
	u.Path = path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return feedsync.ValidationError(op, resource, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return feedsync.NetworkError(op, resource, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return feedsync.NetworkError(op, resource, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return feedsync.NetworkError(op, resource, err)
	}
	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error
		if msg == "" {
			msg = resp.Status
		}
		return &feedsync.RemoteError{
			Kind:     kindFor(resp.StatusCode, eb.Kind),
			Op:       op,
			Resource: resource,
			ID:       id,
			Err:      errors.New(msg),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return feedsync.ValidationError(op, resource, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Package httpremote speaks the collection service's JSON-over-HTTP API.
// Client implements remote.Client; Handler serves any remote.Client under
// the same routes.
//
// Routes (all JSON):
//
//	GET    /v1/{resource}?cursor=&limit=     page  {"documents":[...],"next":""}
//	GET    /v1/{resource}/search?q=          list  {"documents":[...]}
//	GET    /v1/{resource}/where?field=&value= list  {"documents":[...]}
//	GET    /v1/{resource}/{id}               document
//	POST   /v1/{resource}                    create -> document
//	PATCH  /v1/{resource}/{id}               update -> document
//	DELETE /v1/{resource}/{id}               delete -> {"$id":..,"status":"ok"}
//
// Errors carry {"error":"...","kind":"not_found|validation|stale_write|network"}.
package httpremote

import (
	"net/http"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

type listBody struct {
	Documents []remote.Document `json:"documents"`
	Next      string            `json:"next,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(k feedsync.Kind) int {
	switch k {
	case feedsync.KindNotFound:
		return http.StatusNotFound
	case feedsync.KindValidation:
		return http.StatusUnprocessableEntity
	case feedsync.KindStaleWrite:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func kindFor(status int, kind string) feedsync.Kind {
	switch kind {
	case "not_found":
		return feedsync.KindNotFound
	case "validation":
		return feedsync.KindValidation
	case "stale_write":
		return feedsync.KindStaleWrite
	case "network":
		return feedsync.KindNetwork
	}
	switch {
	case status == http.StatusNotFound:
		return feedsync.KindNotFound
	case status == http.StatusConflict:
		return feedsync.KindStaleWrite
	case status >= 400 && status < 500:
		return feedsync.KindValidation
	default:
		return feedsync.KindNetwork
	}
}

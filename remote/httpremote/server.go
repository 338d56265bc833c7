package httpremote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

// Handler serves c under the routes documented on the package.
func Handler(c remote.Client) http.Handler {
	h := &handler{c: c}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/v1/{resource}", func(r chi.Router) {
		r.Get("/", h.page)
		r.Post("/", h.create)
		r.Get("/search", h.search)
		r.Get("/where", h.where)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
	return r
}

type handler struct{ c remote.Client }

func (h *handler) page(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		writeErr(w, feedsync.ValidationError("fetchPage", chi.URLParam(r, "resource"), errors.New("limit must be an integer")))
		return
	}
	pg, err := h.c.FetchPage(r.Context(), chi.URLParam(r, "resource"), feedsync.Cursor(r.URL.Query().Get("cursor")), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Documents: nonNil(pg.Items), Next: string(pg.Next)})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	docs, err := h.c.Search(r.Context(), chi.URLParam(r, "resource"), r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Documents: nonNil(docs)})
}

func (h *handler) where(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.c.Where(r.Context(), chi.URLParam(r, "resource"), q.Get("field"), q.Get("value"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Documents: nonNil(docs)})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.c.GetByID(r.Context(), chi.URLParam(r, "resource"), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) { h.mutate(w, r, remote.OpCreate) }
func (h *handler) update(w http.ResponseWriter, r *http.Request) { h.mutate(w, r, remote.OpUpdate) }
func (h *handler) remove(w http.ResponseWriter, r *http.Request) { h.mutate(w, r, remote.OpDelete) }

func (h *handler) mutate(w http.ResponseWriter, r *http.Request, op string) {
	resource := chi.URLParam(r, "resource")
	payload := remote.Document{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&payload); err != nil {
			writeErr(w, feedsync.ValidationError("mutate:"+op, resource, err))
			return
		}
	}
	if id := chi.URLParam(r, "id"); id != "" {
		payload[remote.FieldID] = id
	}
	d, err := h.c.Mutate(r.Context(), resource, op, payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if op == remote.OpCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, d)
}

func nonNil(docs []remote.Document) []remote.Document {
	if docs == nil {
		return []remote.Document{}
	}
	return docs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	k := feedsync.KindOf(err)
	if k == 0 {
		k = feedsync.KindNetwork
	}
	writeJSON(w, statusFor(k), errorBody{Error: err.Error(), Kind: k.String()})
}

// Package testbackend serves an in-memory imitation of the SecHub REST API
// for tests. Every route is named; the backend counts hits per route name and
// can be told to fail a route or reject a login.
package testbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
)

// Backend is a running fake backend.
type Backend struct {
	server *httptest.Server
	router *mux.Router

	mu       sync.Mutex
	hits     map[string]int
	tokens   map[string]string
	failures map[string]int
	rejected map[string]bool
	store    map[string]map[int64]map[string]any

	nextID atomic.Int64
	conns  atomic.Int64
}

// New starts a backend. Callers must Close it.
func New() *Backend {
	b := &Backend{
		router:   mux.NewRouter(),
		hits:     make(map[string]int),
		tokens:   make(map[string]string),
		failures: make(map[string]int),
		rejected: make(map[string]bool),
		store:    make(map[string]map[int64]map[string]any),
	}
	b.nextID.Store(1000)
	b.seed()
	b.routes()
	b.router.Use(b.track)
	b.server = httptest.NewUnstartedServer(b.router)
	b.server.Config.ConnState = b.trackConn
	b.server.Start()
	return b
}

func (b *Backend) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		b.conns.Add(1)
	case http.StateClosed, http.StateHijacked:
		b.conns.Add(-1)
	}
}

// OpenConns returns the number of client connections the server still holds.
func (b *Backend) OpenConns() int { return int(b.conns.Load()) }

// URL returns the base URL of the backend.
func (b *Backend) URL() string { return b.server.URL }

// Close shuts the server down.
func (b *Backend) Close() { b.server.Close() }

// Fail makes the named route answer with status until Reset.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = status
}

// RejectLogin makes /auth/login answer 401 for email.
func (b *Backend) RejectLogin(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejected[email] = true
}

// Reset clears failures, rejections and hit counters.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.failures)
	clear(b.rejected)
	clear(b.hits)
	clear(b.tokens)
}

// Hits returns how many requests reached the named route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// HitsWithPrefix sums hits over routes whose name starts with prefix.
func (b *Backend) HitsWithPrefix(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for name, c := range b.hits {
		if strings.HasPrefix(name, prefix) {
			n += c
		}
	}
	return n
}

// TotalHits returns the number of routed requests.
func (b *Backend) TotalHits() int {
	return b.HitsWithPrefix("")
}

// LastToken returns the bearer token of the latest request to route.
func (b *Backend) LastToken(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[route]
}

// TokenFor is the access token the backend issues for email.
func TokenFor(email string) string {
	return "access-" + email
}

func (b *Backend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		b.mu.Lock()
		b.hits[name]++
		b.tokens[name] = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		status, failing := b.failures[name]
		b.mu.Unlock()

		if failing {
			writeJSON(w, status, map[string]any{"error": "injected failure", "route": name})
			return
		}
		if !strings.HasPrefix(name, "auth.") && r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) seed() {
	teachers := make(map[int64]map[string]any)
	for id := int64(1); id <= 8; id++ {
		teachers[id] = map[string]any{"id": id, "employmentTypeId": 1 + id%2, "maxHours": 40}
	}
	b.store["teachers"] = teachers
}

// crud registers create, list, get, update, patch and delete routes on
// prefix, named <name>.create and so on. A zero createStatus leaves the
// create route to the caller.
func (b *Backend) crud(prefix, name string, createStatus, deleteStatus int) {
	r := b.router
	if createStatus != 0 {
		r.HandleFunc(prefix, b.create(name, createStatus)).Methods(http.MethodPost).Name(name + ".create")
	}
	r.HandleFunc(prefix, b.list(name)).Methods(http.MethodGet).Name(name + ".list")
	r.HandleFunc(prefix+"/{id:[0-9]+}", b.get(name)).Methods(http.MethodGet).Name(name + ".get")
	r.HandleFunc(prefix+"/{id:[0-9]+}", b.update(name)).Methods(http.MethodPut).Name(name + ".update")
	r.HandleFunc(prefix+"/{id:[0-9]+}", b.update(name)).Methods(http.MethodPatch).Name(name + ".patch")
	r.HandleFunc(prefix+"/{id:[0-9]+}", b.remove(name, deleteStatus)).Methods(http.MethodDelete).Name(name + ".delete")
}

func (b *Backend) create(collection string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decode(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, status, b.insert(collection, body))
	}
}

func (b *Backend) insert(collection string, body map[string]any) map[string]any {
	id := b.nextID.Add(1)
	item := maps.Clone(body)
	if item == nil {
		item = make(map[string]any)
	}
	item["id"] = id

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store[collection] == nil {
		b.store[collection] = make(map[int64]map[string]any)
	}
	b.store[collection][id] = item
	return maps.Clone(item)
}

func (b *Backend) list(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		items := make([]map[string]any, 0, len(b.store[collection]))
		for _, item := range b.store[collection] {
			items = append(items, maps.Clone(item))
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, items)
	}
}

func (b *Backend) get(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r, "id")
		b.mu.Lock()
		item, ok := b.store[collection][id]
		if ok {
			item = maps.Clone(item)
		}
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (b *Backend) update(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r, "id")
		body, err := decode(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		b.mu.Lock()
		item, ok := b.store[collection][id]
		if ok {
			maps.Copy(item, body)
			item["id"] = id
			item = maps.Clone(item)
		}
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (b *Backend) remove(collection string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r, "id")
		b.mu.Lock()
		_, ok := b.store[collection][id]
		delete(b.store[collection], id)
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		w.WriteHeader(status)
	}
}

// static answers every request with the same status and body.
// A nil body sends headers only.
func static(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if body == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, body)
	}
}

func decode(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("malformed body: %w", err)
	}
	return body, nil
}

func pathID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

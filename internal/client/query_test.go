package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ChordDHT/internal/domain"
)

func testSpace(t *testing.T) domain.Space {
	t.Helper()
	sp, err := domain.NewSpace(160, 8)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func newTestPool(t *testing.T, sp domain.Space) *Pool {
	t.Helper()
	return New(sp, "127.0.0.1:0", 2*time.Second)
}

// hostOf strips the scheme from an httptest server URL, since the pool
// speaks to bare host:port addresses.
func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestNodeInfoOfDecodesSnapshot(t *testing.T) {
	sp := testSpace(t)
	selfAddr := "10.0.0.1:7000"
	succAddr := "10.0.0.2:7000"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/node-info" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"address": "` + selfAddr + `",
			"node_hash": "` + sp.NewIDFromString(selfAddr).ToHexString(false) + `",
			"successor": {"address": "` + succAddr + `", "node_hash": "` + sp.NewIDFromString(succAddr).ToHexString(false) + `"},
			"predecessor": null,
			"finger_table": [{"address": "` + succAddr + `", "node_hash": "` + sp.NewIDFromString(succAddr).ToHexString(false) + `"}],
			"successor_list": []
		}`))
	}))
	defer srv.Close()

	p := newTestPool(t, sp)
	info, err := p.NodeInfoOf(context.Background(), hostOf(srv))
	if err != nil {
		t.Fatalf("NodeInfoOf: %v", err)
	}
	if info.Self.Addr != selfAddr {
		t.Errorf("Self.Addr = %q, want %q", info.Self.Addr, selfAddr)
	}
	if !info.Self.ID.Equal(sp.NewIDFromString(selfAddr)) {
		t.Error("Self.ID does not match the advertised hash")
	}
	if info.Successor == nil || info.Successor.Addr != succAddr {
		t.Errorf("Successor = %v, want %s", info.Successor, succAddr)
	}
	if info.Predecessor != nil {
		t.Errorf("null predecessor should decode to nil, got %v", info.Predecessor)
	}
	if len(info.FingerTable) != 1 {
		t.Errorf("finger table should have one entry, got %d", len(info.FingerTable))
	}
}

func TestGetPredecessorNull(t *testing.T) {
	sp := testSpace(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predecessor": null}`))
	}))
	defer srv.Close()

	p := newTestPool(t, sp)
	_, err := p.GetPredecessor(context.Background(), hostOf(srv))
	if !errors.Is(err, ErrNoPredecessor) {
		t.Errorf("GetPredecessor with null body: got %v, want ErrNoPredecessor", err)
	}
}

func TestStorageRoundTrip(t *testing.T) {
	sp := testSpace(t)
	store := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/storage/")
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			store[key] = string(body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			v, ok := store[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(v))
		case http.MethodDelete:
			if _, ok := store[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(store, key)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	p := newTestPool(t, sp)
	addr := hostOf(srv)
	ctx := context.Background()

	res := domain.Resource{Key: sp.NewIDFromString("foo"), RawKey: "foo", Value: "bar"}
	if err := p.StoragePut(ctx, addr, res); err != nil {
		t.Fatalf("StoragePut: %v", err)
	}
	got, err := p.StorageGet(ctx, addr, "foo")
	if err != nil {
		t.Fatalf("StorageGet: %v", err)
	}
	if got.Value != "bar" {
		t.Errorf("StorageGet = %q, want %q", got.Value, "bar")
	}
	if !got.Key.Equal(sp.NewIDFromString("foo")) {
		t.Error("StorageGet must re-derive the key hash from the raw key")
	}
	if err := p.StorageDelete(ctx, addr, "foo"); err != nil {
		t.Fatalf("StorageDelete: %v", err)
	}
	if _, err := p.StorageGet(ctx, addr, "foo"); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Errorf("StorageGet after delete: got %v, want ErrResourceNotFound", err)
	}
}

func TestNormalizeErrorStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrResourceNotFound},
		{http.StatusConflict, domain.ErrNotResponsible},
		{http.StatusServiceUnavailable, domain.ErrUnavailable},
		{http.StatusBadRequest, domain.ErrInvalidRequest},
		{http.StatusBadGateway, domain.ErrUnreachable},
	}
	for _, c := range cases {
		got := normalizeError("10.0.0.1:7000", c.status, nil)
		if !errors.Is(got, c.want) {
			t.Errorf("normalizeError(status=%d) = %v, want %v", c.status, got, c.want)
		}
	}
	if err := normalizeError("10.0.0.1:7000", http.StatusOK, nil); err != nil {
		t.Errorf("2xx must normalize to nil, got %v", err)
	}
}

func TestUnreachablePeer(t *testing.T) {
	sp := testSpace(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := hostOf(srv)
	srv.Close() // nothing listens here anymore

	p := newTestPool(t, sp)
	if err := p.Ping(context.Background(), addr); !errors.Is(err, domain.ErrUnreachable) {
		t.Errorf("Ping against a closed server: got %v, want ErrUnreachable", err)
	}
}

func TestPoolRefCounting(t *testing.T) {
	sp := testSpace(t)
	p := newTestPool(t, sp)

	if err := p.AddRef("10.0.0.1:7000"); err != nil {
		t.Fatalf("AddRef: %v", err)
	}
	if err := p.AddRef("10.0.0.1:7000"); err != nil {
		t.Fatalf("second AddRef: %v", err)
	}
	if err := p.Release("10.0.0.1:7000"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := p.Release("10.0.0.1:7000"); err != nil {
		t.Fatalf("final Release: %v", err)
	}
	if err := p.Release("10.0.0.1:7000"); err == nil {
		t.Error("releasing an unknown address must fail")
	}
	// Self references are ignored rather than counted.
	if err := p.AddRef(p.selfAddr); err != nil {
		t.Errorf("AddRef(self) should be a no-op, got %v", err)
	}
}

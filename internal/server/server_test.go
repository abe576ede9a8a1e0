package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vigilator/vigil/pkg/core"
	"github.com/vigilator/vigil/pkg/vigil"
)

func newTestServer(t *testing.T) (*Server, *vigil.DB) {
	t.Helper()
	db, err := vigil.Open(context.Background(), core.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, nil, 2), db
}

func TestHandleTopK(t *testing.T) {
	s, db := newTestServer(t)
	rec, err := db.StoreRecord(context.Background(), "The capital of France is", []uint32{7, 8, 9}, []float32{0.1, 0.9, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		query  string
		status int
		want   []uint32
	}{
		{"default k", "?text=The+capital+of+France+is", http.StatusOK, []uint32{8, 9}},
		{"explicit k", "?text=The+capital+of+France+is&top_k=1", http.StatusOK, []uint32{8}},
		{"k above length", "?text=The+capital+of+France+is&top_k=10", http.StatusOK, []uint32{8, 9, 7}},
		{"missing text", "?top_k=1", http.StatusBadRequest, nil},
		{"bad k", "?text=x&top_k=-1", http.StatusBadRequest, nil},
		{"unknown text", "?text=nope", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp topKResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.UUID != rec.ID() {
				t.Errorf("uuid = %q, want %q", resp.UUID, rec.ID())
			}
			if len(resp.TopK) != len(tt.want) {
				t.Fatalf("top_k = %v, want ids %v", resp.TopK, tt.want)
			}
			for i, id := range tt.want {
				if resp.TopK[i].TokenID != id {
					t.Errorf("top_k[%d] = %d, want %d", i, resp.TopK[i].TokenID, id)
				}
			}
		})
	}
}

func TestHandleTopKMismatch(t *testing.T) {
	s, db := newTestServer(t)
	if _, err := db.StoreRecord(context.Background(), "uneven", []uint32{1, 2}, []float32{1}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?text=uneven", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestHandleTopKEmptyText(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	body, _ := json.Marshal(recordRequest{Text: "", TokenIDs: []uint32{4, 5}, Logits: []float32{0.2, 0.8}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?text=&top_k=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET empty text status = %d: %s", w.Code, w.Body.String())
	}
	var resp topKResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.TopK) != 1 || resp.TopK[0].TokenID != 5 {
		t.Errorf("top_k = %v, want token 5", resp.TopK)
	}
}

func TestHandleRecords(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	body, _ := json.Marshal(recordRequest{Text: "hello", TokenIDs: []uint32{1, 2}, Logits: []float32{0.5, -0.5}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", w.Code, w.Body.String())
	}
	var created core.RecordJSON
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	for _, field := range []string{"uuid", "text"} {
		value := created.UUID
		if field == "text" {
			value = "hello"
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/records?field=%s&value=%s", field, value), nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET by %s status = %d", field, w.Code)
		}
		var got core.RecordJSON
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.UUID != created.UUID || len(got.Logits) != 2 {
			t.Errorf("GET by %s = %+v", field, got)
		}
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/records?field=logits&value=1", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("blob field lookup status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader([]byte("{"))))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s, db := newTestServer(t)
	if _, err := db.StoreRecord(context.Background(), "a", nil, nil); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["records"] != float64(1) {
		t.Errorf("records = %v, want 1", resp["records"])
	}

	db.Close()
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed store status = %d, want 503", w.Code)
	}
}

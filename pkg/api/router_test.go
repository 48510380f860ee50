package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/tasklease/pkg/metrics"
)

func TestHealthz_ReturnsOK(t *testing.T) {
	router := NewRouter("test", nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body HealthBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", body.Status)
	}
	if body.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestError_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusConflict, "resource busy")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var body ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error != "resource busy" {
		t.Errorf("Expected error 'resource busy', got '%s'", body.Error)
	}
}

func TestJSON_EncodesPayload(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusCreated, map[string]int{"id": 7})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var body map[string]int
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["id"] != 7 {
		t.Errorf("Expected id 7, got %d", body["id"])
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	router := NewRouter("test", nil)
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestRouter_RecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	router := NewRouter("test", m)
	router.Get("/leases/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/leases/42", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != "tasklease_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] == "/leases/{id}" && labels["status"] == "200" {
				found = true
			}
		}
	}
	if !found {
		t.Error("Expected a request counter labelled with the route pattern '/leases/{id}'")
	}
}

func TestNewServer_AppliesDefaults(t *testing.T) {
	server := NewServer(Config{}, http.NewServeMux())

	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
}

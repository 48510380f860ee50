package leasemanager

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/store"
)

// newTestService creates a service over an in-memory SQLite store.
func newTestService(t *testing.T, ttl time.Duration) (*Service, *chi.Mux) {
	t.Helper()

	st, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})

	svc := New(st, Config{TTL: ttl}, nil)
	return svc, svc.Router()
}

func doJSON(t *testing.T, router *chi.Mux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeLease(t *testing.T, w *httptest.ResponseRecorder) models.Lease {
	t.Helper()
	var lease models.Lease
	if err := json.NewDecoder(w.Body).Decode(&lease); err != nil {
		t.Fatalf("Failed to decode lease: %v", err)
	}
	return lease
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body.Error
}

func TestAcquire(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	lease := decodeLease(t, w)
	if lease.ID == 0 {
		t.Error("Expected lease id to be assigned")
	}
	if lease.Resource != "db-compactor" {
		t.Errorf("Expected resource 'db-compactor', got '%s'", lease.Resource)
	}
	if lease.Holder != "worker-1" {
		t.Errorf("Expected holder 'worker-1', got '%s'", lease.Holder)
	}
	if got := lease.ExpiresAt.Sub(lease.CreatedAt); got != 30*time.Second {
		t.Errorf("Expected expiry 30s after creation, got %v", got)
	}
	if lease.RenewedAt != nil || lease.ReleasedAt != nil {
		t.Error("Expected renewed_at and released_at to be unset on a fresh lease")
	}
}

func TestAcquire_Conflict(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	w = doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-2"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if msg := decodeError(t, w); msg != models.ErrLeaseHeld.Error() {
		t.Errorf("Expected error '%s', got '%s'", models.ErrLeaseHeld.Error(), msg)
	}
}

func TestAcquire_Validation(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing resource", `{"holder":"worker-1"}`, "resource is required"},
		{"missing holder", `{"resource":"db-compactor"}`, "holder is required"},
		{"malformed body", `{not json`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/leases", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if msg := decodeError(t, w); msg != tt.want {
				t.Errorf("Expected error '%s', got '%s'", tt.want, msg)
			}
		})
	}
}

func TestRenew(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)
	acquired := decodeLease(t, w)

	w = doJSON(t, router, "PUT", "/leases/renew", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	renewed := decodeLease(t, w)
	if renewed.ID != acquired.ID {
		t.Errorf("Expected renewal of lease %d, got lease %d", acquired.ID, renewed.ID)
	}
	if renewed.RenewedAt == nil {
		t.Fatal("Expected renewed_at to be set")
	}
	if renewed.ExpiresAt.Before(acquired.ExpiresAt) {
		t.Error("Expected renewal to not shorten the lease")
	}
}

func TestRenew_WrongHolder(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)

	w := doJSON(t, router, "PUT", "/leases/renew", `{"resource":"db-compactor","holder":"worker-2"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if msg := decodeError(t, w); msg != models.ErrLeaseHeld.Error() {
		t.Errorf("Expected error '%s', got '%s'", models.ErrLeaseHeld.Error(), msg)
	}
}

func TestRenew_Expired(t *testing.T) {
	_, router := newTestService(t, 50*time.Millisecond)

	doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)
	time.Sleep(100 * time.Millisecond)

	w := doJSON(t, router, "PUT", "/leases/renew", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if msg := decodeError(t, w); msg != models.ErrLeaseExpired.Error() {
		t.Errorf("Expected error '%s', got '%s'", models.ErrLeaseExpired.Error(), msg)
	}
}

func TestRenew_Unknown(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "PUT", "/leases/renew", `{"resource":"nothing-here","holder":"worker-1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestReleaseByID(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)
	acquired := decodeLease(t, w)
	path := fmt.Sprintf("/leases/%d", acquired.ID)

	w = doJSON(t, router, "DELETE", path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	released := decodeLease(t, w)
	if released.ID != acquired.ID {
		t.Errorf("Expected lease %d, got %d", acquired.ID, released.ID)
	}
	if released.ReleasedAt == nil {
		t.Fatal("Expected released_at to be set")
	}

	// Releasing again is a no-op success
	w = doJSON(t, router, "DELETE", path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d on repeat release, got %d", http.StatusOK, w.Code)
	}
	again := decodeLease(t, w)
	if again.ReleasedAt == nil || !again.ReleasedAt.Equal(*released.ReleasedAt) {
		t.Error("Expected repeat release to keep the original released_at")
	}

	// Resource is reacquirable after release
	w = doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-2"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d after release, got %d", http.StatusCreated, w.Code)
	}
}

func TestReleaseByID_Errors(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "DELETE", "/leases/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d for unknown id, got %d", http.StatusNotFound, w.Code)
	}

	w = doJSON(t, router, "DELETE", "/leases/banana", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for malformed id, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestReleaseByResource(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)

	w := doJSON(t, router, "PUT", "/leases/release", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	released := decodeLease(t, w)
	if released.ReleasedAt == nil {
		t.Fatal("Expected released_at to be set")
	}

	// No active lease left to release by name
	w = doJSON(t, router, "PUT", "/leases/release", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestReleaseByResource_WrongHolder(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	doJSON(t, router, "POST", "/leases", `{"resource":"db-compactor","holder":"worker-1"}`)

	w := doJSON(t, router, "PUT", "/leases/release", `{"resource":"db-compactor","holder":"worker-2"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	// The owner's lease is untouched
	w = doJSON(t, router, "PUT", "/leases/renew", `{"resource":"db-compactor","holder":"worker-1"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected owner to still renew, got %d", w.Code)
	}
}

func TestList(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	doJSON(t, router, "POST", "/leases", `{"resource":"res-a","holder":"worker-1"}`)
	doJSON(t, router, "POST", "/leases", `{"resource":"res-b","holder":"worker-1"}`)
	doJSON(t, router, "PUT", "/leases/renew", `{"resource":"res-b","holder":"worker-1"}`)
	doJSON(t, router, "POST", "/leases", `{"resource":"res-c","holder":"worker-2"}`)
	doJSON(t, router, "PUT", "/leases/release", `{"resource":"res-c","holder":"worker-2"}`)

	tests := []struct {
		state string
		want  int
	}{
		{"all", 3},
		{"active", 2},
		{"renewed", 1},
		{"released", 1},
		{"expired", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			w := doJSON(t, router, "GET", "/leases?state="+tt.state, "")
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
			}
			var leases []models.Lease
			if err := json.NewDecoder(w.Body).Decode(&leases); err != nil {
				t.Fatalf("Failed to decode leases: %v", err)
			}
			if len(leases) != tt.want {
				t.Errorf("Expected %d leases, got %d", tt.want, len(leases))
			}
		})
	}

	// Missing state defaults to all
	w := doJSON(t, router, "GET", "/leases", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var leases []models.Lease
	if err := json.NewDecoder(w.Body).Decode(&leases); err != nil {
		t.Fatalf("Failed to decode leases: %v", err)
	}
	if len(leases) != 3 {
		t.Errorf("Expected 3 leases, got %d", len(leases))
	}
}

func TestList_InvalidState(t *testing.T) {
	_, router := newTestService(t, 30*time.Second)

	w := doJSON(t, router, "GET", "/leases?state=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

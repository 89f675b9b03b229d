package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/profile-service/backend/internal/metrics"
	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
	"github.com/zhouzirui/profile-service/backend/internal/service/watch"
)

func TestRouterServesProfilesHealthAndMetrics(t *testing.T) {
	collector := metrics.New()
	hub := watch.NewHub(4)
	store := profile.NewMemoryStore(profile.Seed(), profile.WithObserver(hub), profile.WithObserver(collector))
	router := NewRouter(store, hub, collector, "*")

	for _, path := range []string{"/healthz", "/api/profiles", "/api/profiles/Admin", "/api/profiles/Admin/permissions/CanEdit"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
		if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s: missing CORS header", path)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `profile_service_permission_checks_total{result="true"} 1`) {
		t.Fatalf("metrics missing permission check counter:\n%s", resp.Body.String())
	}
}

func TestRouterWithoutOptionalServices(t *testing.T) {
	store := profile.NewMemoryStore(profile.Seed())
	router := NewRouter(store, nil, nil, "")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without collector, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/watch/profiles", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without hub, got %d", resp.Code)
	}
}

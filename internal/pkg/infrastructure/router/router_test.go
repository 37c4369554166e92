package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestRouterAllowsCrossOriginReads(t *testing.T) {
	is := is.New(t)

	r := New("test-service")
	r.Get("/api/v0/vehicles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v0/vehicles", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.Header.Get("Access-Control-Allow-Origin"), "*")
}

func TestRouterAllowsResolvePreflight(t *testing.T) {
	is := is.New(t)

	r := New("test-service")
	r.Patch("/api/v0/faults/{faultID}/resolve", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v0/faults/f-1/resolve", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.True(strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch))
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evdnx/backcast/testutils"
)

func TestFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date":"2024-01-01T00:00:00Z","open":100,"high":101,"low":99,"close":100.5,"volume":10},
			{"date":"2024-01-02T00:00:00Z","open":100.5,"high":102,"low":100,"close":101.5,"volume":12}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, testutils.NewMockLogger())
	series, err := c.Fetch(context.Background(), "/bars")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", series.Len())
	}
	if series.Close[1] != 101.5 {
		t.Fatalf("Close[1] = %v, want 101.5", series.Close[1])
	}
}

func TestFetchWrappedEnvelope(t *testing.T) {
	for _, key := range []string{"price_data", "data", "prices", "results"} {
		t.Run(key, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"` + key + `":[{"date":"2024-01-01T00:00:00Z","open":1,"high":2,"low":0.5,"close":1.5}]}`))
			}))
			defer srv.Close()

			c := New(srv.URL, testutils.NewMockLogger())
			series, err := c.Fetch(context.Background(), "/bars")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if series.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", series.Len())
			}
		})
	}
}

func TestFetchEmptyResponseIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, testutils.NewMockLogger())
	_, err := c.Fetch(context.Background(), "/bars")
	if err == nil {
		t.Fatal("expected an error on an empty row set")
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	}))
	defer srv.Close()

	c := New(srv.URL, testutils.NewMockLogger(), WithTimeout(0))
	_, err := c.Fetch(context.Background(), "/bars")
	if err == nil {
		t.Fatal("expected an error on a 5xx response")
	}
}

package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/leads"
)

func newExec() *httpx.Executor {
	return httpx.New(httpx.Config{Timeout: time.Second, InitialBackoff: time.Millisecond}, zap.NewNop())
}

func TestResolveWithoutKeyIsInert(t *testing.T) {
	t.Parallel()

	src := New(Config{Endpoint: "https://places.example/search"}, newExec(), zap.NewNop())
	listings, hasMore, err := src.Resolve(context.Background(), "bakeries", leads.Location{City: "Springfield", Region: "IL"}, 1)
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Empty(t, listings)
}

func TestResolveQueriesAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var queries []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&queries))
		require.Len(t, queries, 1)
		require.Equal(t, "bakeries", queries[0]["q"])
		require.Equal(t, "Springfield, IL", queries[0]["location"])
		require.EqualValues(t, 20, queries[0]["num"])
		require.EqualValues(t, 1, queries[0]["page"])

		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"places": []map[string]string{
				{
					"title":       "Corner Bakery",
					"phoneNumber": "(217) 555-0134",
					"website":     "https://cornerbakery.example",
					"email":       "Hello@CornerBakery.example",
				},
				{"title": "  "},
				{"title": "Main St Donuts"},
			},
		}})
	}))
	defer srv.Close()

	src := New(Config{Endpoint: srv.URL, APIKey: "test-key"}, newExec(), zap.NewNop())
	listings, hasMore, err := src.Resolve(context.Background(), "bakeries", leads.Location{City: "Springfield", Region: "IL"}, 1)
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Len(t, listings, 2)

	require.Equal(t, leads.Listing{
		Name:       "Corner Bakery",
		Phone:      "(217) 555-0134",
		Website:    "https://cornerbakery.example",
		Email:      "hello@cornerbakery.example",
		SourceHint: "places",
	}, listings[0])
	require.Equal(t, "Main St Donuts", listings[1].Name)
}

func TestResolveSingleObjectResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]string{{"title": "Solo Cafe"}},
		})
	}))
	defer srv.Close()

	src := New(Config{Endpoint: srv.URL, APIKey: "test-key"}, newExec(), zap.NewNop())
	listings, _, err := src.Resolve(context.Background(), "cafes", leads.Location{City: "Austin", Region: "TX"}, 1)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "Solo Cafe", listings[0].Name)
}

func TestResolveTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := New(Config{Endpoint: srv.URL, APIKey: "bad-key"}, newExec(), zap.NewNop())
	listings, hasMore, err := src.Resolve(context.Background(), "cafes", leads.Location{City: "Austin", Region: "TX"}, 1)
	require.Error(t, err)
	require.Empty(t, listings)
	require.False(t, hasMore)
}

func TestDecodeResultsMalformed(t *testing.T) {
	t.Parallel()

	_, err := decodeResults([]byte("not json"))
	require.Error(t, err)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-carehome/internal/app"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/digest"
	"github.com/npezzotti/go-carehome/internal/seed"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/npezzotti/go-carehome/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	a := app.New(testutil.TestLogger(t), stats.NewPermissiveMock(), database.NewMemoryStore(), clock.Fixed(testutil.Today()), nil)
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(func() { a.Close(context.Background()) })

	return NewServer(testutil.TestLogger(t), http.NewServeMux(), a, "", &bytes.Buffer{})
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tcases := []struct {
		name       string
		path       string
		statusCode int
	}{
		{name: "health check", path: "/healthz", statusCode: http.StatusOK},
		{name: "summary", path: "/api/summary", statusCode: http.StatusOK},
		{name: "digest", path: "/api/digest", statusCode: http.StatusOK},
		{name: "residents", path: "/api/residents", statusCode: http.StatusOK},
		{name: "resident feed", path: "/api/residents/" + seed.ResidentEdith + "/feed", statusCode: http.StatusOK},
		{name: "unknown resident", path: "/api/residents/ghost/feed", statusCode: http.StatusNotFound},
		{name: "wrong method", path: "/api/summary", statusCode: http.StatusMethodNotAllowed},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodGet
			if tc.statusCode == http.StatusMethodNotAllowed {
				method = http.MethodPost
			}
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(method, tc.path, nil)
			srv.Handler().ServeHTTP(rr, req)

			assert.Equal(t, tc.statusCode, rr.Code, "unexpected status code")
		})
	}
}

func TestResidentFeed(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/residents/"+seed.ResidentEdith+"/feed", nil)
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var items []types.FeedItem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, "seed-fi-2", items[0].Id, "expected newest first")
}

func TestDigest(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/digest", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var d digest.Digest
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
	assert.Equal(t, 2, d.TotalUpdates)
	assert.Equal(t, []string{"Rose Nguyen", "Walter Okafor"}, d.NoUpdates)
}

func TestErrorHandlerRecovers(t *testing.T) {
	srv := newTestServer(t)
	h := srv.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, rr.Body.String(), "internal server error")
}

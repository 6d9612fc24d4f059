package service

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
)

// fakeSource serves canned bodies; a resource without a body answers 404
type fakeSource struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{bodies: make(map[string][]byte), calls: make(map[string]int)}
}

func (s *fakeSource) set(resource string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if body == nil {
		delete(s.bodies, resource)
		return
	}
	s.bodies[resource] = body
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(ctx context.Context, resource string) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[resource]++
	body, ok := s.bodies[resource]
	if !ok {
		return nil, http.StatusNotFound, domain.ErrUnexpectedStatus
	}
	return body, http.StatusOK, nil
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func TestHTTPSource_Fetch(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/vision_zero_ss.json":
			contentType = r.Header.Get("Content-Type")
			_, _ = w.Write([]byte(`{"data": [], "schema": {}}`))
		default:
			http.Error(w, "nope", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", 2*time.Second)
	require.Equal(t, srv.URL, src.Name())

	body, status, err := src.Fetch(context.Background(), ResourceVisionZero)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"data": [], "schema": {}}`, string(body))
	require.Equal(t, "application/json", contentType)

	_, status, err = src.Fetch(context.Background(), ResourceDistricts)
	require.ErrorIs(t, err, domain.ErrUnexpectedStatus)
	require.Equal(t, http.StatusForbidden, status)
}

func TestDirSource_Fetch(t *testing.T) {
	src := NewDirSource("testdata")

	body, status, err := src.Fetch(context.Background(), "neighborhoods.geojson")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body)

	_, status, err = src.Fetch(context.Background(), "missing.geojson")
	require.ErrorIs(t, err, domain.ErrUnexpectedStatus)
	require.Equal(t, http.StatusNotFound, status)

	// paths cannot climb out of the directory
	_, status, _ = src.Fetch(context.Background(), "../source.go")
	require.Equal(t, http.StatusNotFound, status)
}

func TestEnvelopeSource_CoercesStringCoordinates(t *testing.T) {
	fake := newFakeSource()
	fake.set(ResourceVisionZero, readTestdata(t, "vision_zero_ss.json"))

	rows, status, err := NewEnvelopeSource(fake, ResourceVisionZero).FetchIncidents(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, rows, 5)
	require.Equal(t, domain.LooseNumber(42.32), rows[0].Lat)
	require.True(t, math.IsNaN(float64(rows[3].Lat)))
}

func TestEnvelopeSource_BadJSON(t *testing.T) {
	fake := newFakeSource()
	fake.set(ResourceVisionZero, []byte(`<html>`))

	_, _, err := NewEnvelopeSource(fake, ResourceVisionZero).FetchIncidents(context.Background())
	require.Error(t, err)
}

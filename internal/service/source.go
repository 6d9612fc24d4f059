package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/visionzero/backend/internal/domain"
)

// Static resources bundled with the dashboard
const (
	ResourceBoundary      = "data/City_of_Boston_Boundary.geojson"
	ResourceNeighborhoods = "data/Boston_Neighborhoods.geojson"
	ResourceStations      = "data/Boston_Police_Stations.geojson"
	ResourceDistricts     = "data/Police_Districts.geojson"
	ResourceVisionZero    = "data/vision_zero_ss.json"
	ResourceCrimeData     = "data/crime_data.json"
)

// LayerResources maps every map layer to its resource
var LayerResources = map[domain.LayerName]string{
	domain.LayerBoundary:      ResourceBoundary,
	domain.LayerNeighborhoods: ResourceNeighborhoods,
	domain.LayerStations:      ResourceStations,
	domain.LayerDistricts:     ResourceDistricts,
}

// Source fetches static resources by relative path
type Source interface {
	// Name identifies the source in load outcomes
	Name() string

	// Fetch returns the resource body and the HTTP-equivalent status.
	// Any status other than 200 comes back with an error wrapping domain.ErrUnexpectedStatus.
	Fetch(ctx context.Context, resource string) ([]byte, int, error)
}

// HTTPSource fetches resources with unauthenticated GET requests below a base URL
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source rooted at baseURL
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the base URL
func (s *HTTPSource) Name() string {
	return s.baseURL
}

// Fetch GETs baseURL/resource
func (s *HTTPSource) Fetch(ctx context.Context, resource string) ([]byte, int, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, strings.TrimLeft(resource, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("source: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("source: failed to fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("source: %s returned %d: %w", resource, resp.StatusCode, domain.ErrUnexpectedStatus)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("source: failed to read %s: %w", resource, err)
	}
	return body, resp.StatusCode, nil
}

// DirSource reads resources from a local directory
type DirSource struct {
	dir string
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Name returns the directory
func (s *DirSource) Name() string {
	return "file://" + s.dir
}

// Fetch reads dir/resource; a missing file reports 404
func (s *DirSource) Fetch(ctx context.Context, resource string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(filepath.Clean("/"+resource)))
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, http.StatusNotFound, fmt.Errorf("source: %s returned %d: %w", resource, http.StatusNotFound, domain.ErrUnexpectedStatus)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("source: failed to read %s: %w", resource, err)
	}
	return body, http.StatusOK, nil
}

// IncidentSource yields raw incident rows
type IncidentSource interface {
	Name() string
	Resource() string
	FetchIncidents(ctx context.Context) ([]domain.RawIncident, int, error)
}

// EnvelopeSource decodes the {data, schema} incident envelope from a Source
type EnvelopeSource struct {
	src      Source
	resource string
}

// NewEnvelopeSource reads incidents from resource on src
func NewEnvelopeSource(src Source, resource string) *EnvelopeSource {
	return &EnvelopeSource{src: src, resource: resource}
}

func (s *EnvelopeSource) Name() string     { return s.src.Name() }
func (s *EnvelopeSource) Resource() string { return s.resource }

// FetchIncidents fetches and decodes the envelope
func (s *EnvelopeSource) FetchIncidents(ctx context.Context) ([]domain.RawIncident, int, error) {
	body, status, err := s.src.Fetch(ctx, s.resource)
	if err != nil {
		return nil, status, err
	}
	var env domain.IncidentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, status, fmt.Errorf("source: failed to decode %s: %w", s.resource, err)
	}
	return env.Data, status, nil
}

// DataRepository is the persistence port defined in domain
type DataRepository = domain.DataRepository

// RepositorySource reads incidents stored in the database
type RepositorySource struct {
	repo DataRepository
}

// NewRepositorySource reads incidents through repo
func NewRepositorySource(repo DataRepository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Name() string     { return "repository" }
func (s *RepositorySource) Resource() string { return "incidents" }

// FetchIncidents lists the stored incidents
func (s *RepositorySource) FetchIncidents(ctx context.Context) ([]domain.RawIncident, int, error) {
	rows, err := s.repo.ListIncidents(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("source: failed to list incidents: %w", err)
	}
	return rows, http.StatusOK, nil
}

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// Well-known source names. The engine consumes these as external contracts;
// deployments register whichever connectors they actually run.
const (
	SourceCommerce  = "commerce"
	SourceCourses   = "courses"
	SourceCustomers = "customers"
	SourceMarketing = "marketing"
	SourceFinance   = "finance"
)

// Source is one external business data source. Fetch must honor the query's
// time window and limit and return a typed error instead of panicking.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query models.SourceQuery) (*models.SourceRecords, error)
}

// RESTSource is a generic JSON-over-HTTP connector: one endpoint per query
// kind, window and limit passed as query parameters.
type RESTSource struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTSource builds a connector for baseURL (no trailing slash).
func NewRESTSource(name, baseURL, apiKey string, client *http.Client) *RESTSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTSource{name: name, baseURL: baseURL, apiKey: apiKey, client: client}
}

func (s *RESTSource) Name() string { return s.name }

// Fetch implements Source.
func (s *RESTSource) Fetch(ctx context.Context, query models.SourceQuery) (*models.SourceRecords, error) {
	endpoint := fmt.Sprintf("%s/%s", s.baseURL, url.PathEscape(query.Kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", s.name, err)
	}

	q := req.URL.Query()
	q.Set("since", query.WindowStart.UTC().Format(time.RFC3339))
	q.Set("until", query.WindowEnd.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(query.Limit))
	for k, v := range query.Params {
		q.Set(k, fmt.Sprint(v))
	}
	req.URL.RawQuery = q.Encode()
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.name, query.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: fetch %s: status %d", s.name, query.Kind, resp.StatusCode)
	}

	var records []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", s.name, query.Kind, err)
	}
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return &models.SourceRecords{Source: s.name, Kind: query.Kind, Records: records}, nil
}

// StaticSource serves fixed records per query kind. Used in tests and for
// local development without live connectors.
type StaticSource struct {
	SourceName string
	ByKind     map[string][]map[string]interface{}
	// Err, when set, makes every Fetch fail.
	Err error

	fetches atomic.Int64
}

func (s *StaticSource) Name() string { return s.SourceName }

// Fetches reports how many times Fetch ran.
func (s *StaticSource) Fetches() int64 { return s.fetches.Load() }

// Fetch implements Source.
func (s *StaticSource) Fetch(_ context.Context, query models.SourceQuery) (*models.SourceRecords, error) {
	s.fetches.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	records := s.ByKind[query.Kind]
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return &models.SourceRecords{Source: s.SourceName, Kind: query.Kind, Records: records}, nil
}

var (
	_ Source = (*RESTSource)(nil)
	_ Source = (*StaticSource)(nil)
)

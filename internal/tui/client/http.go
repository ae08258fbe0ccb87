package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/headroom/headroom/internal/ws"
)

// HTTPClient makes REST calls to headroomd.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8090").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Snapshot fetches /api/snapshot.
func (c *HTTPClient) Snapshot() (snapshot.Snapshot, error) {
	var s snapshot.Snapshot
	err := c.get("/api/snapshot", nil, &s)
	return s, err
}

// Health fetches /api/health.
func (c *HTTPClient) Health() (sampler.HealthReport, error) {
	var h sampler.HealthReport
	err := c.get("/api/health", nil, &h)
	return h, err
}

// CanAllocate asks /api/allocate whether bytes fits right now.
func (c *HTTPClient) CanAllocate(bytes uint64) (bool, error) {
	var out ws.AllocateResponse
	q := url.Values{"bytes": {strconv.FormatUint(bytes, 10)}}
	if err := c.get("/api/allocate", q, &out); err != nil {
		return false, err
	}
	return out.OK, nil
}

func (c *HTTPClient) get(path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// HTTPBase converts ws://host:port/ws to http://host:port.
func HTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8090"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

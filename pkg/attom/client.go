// Package attom is a client for the ATTOM property data API: parcel,
// assessment, and sale records for a validated address.
package attom

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/resilience"
)

const defaultBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"

// Client fetches property records.
type Client interface {
	PropertyDetail(ctx context.Context, line1, city, state, zip string) (*Property, error)
}

// Property is the parcel record we consume.
type Property struct {
	ParcelID      string  `json:"parcel_id"`
	OwnerName     string  `json:"owner_name"`
	OwnerMailing  string  `json:"owner_mailing"`
	UseCode       string  `json:"use_code"`
	YearBuilt     int     `json:"year_built"`
	SqFt          int     `json:"sq_ft"`
	AssessedUSD   float64 `json:"assessed_usd"`
	LastSaleUSD   float64 `json:"last_sale_usd"`
	LastSaleDate  string  `json:"last_sale_date"`
	MatchScore    float64 `json:"match_score"` // 0-1 address match quality
	AsOfDate      string  `json:"as_of_date"`  // YYYY-MM-DD assessment date
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an ATTOM API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) PropertyDetail(ctx context.Context, line1, city, state, zip string) (*Property, error) {
	q := url.Values{}
	q.Set("address1", line1)
	q.Set("address2", city+", "+state+" "+zip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/property/detail?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "attom: create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "attom: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "attom: read response")
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := eris.Errorf("attom: unexpected status %d: %s", resp.StatusCode, string(body))
		switch {
		case resilience.IsUnauthorizedHTTPStatus(resp.StatusCode):
			return nil, resilience.NewUnauthorizedError(httpErr, resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(httpErr, resp.StatusCode)
		default:
			return nil, httpErr
		}
	}

	var wrapper struct {
		Property []Property `json:"property"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, eris.Wrap(err, "attom: unmarshal response")
	}
	if len(wrapper.Property) == 0 {
		return nil, nil
	}
	return &wrapper.Property[0], nil
}

// Package pdl is a client for the People Data Labs person-enrichment API,
// the second contact source feeding the fusion engine.
package pdl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/resilience"
)

const defaultBaseURL = "https://api.peopledatalabs.com/v5"

// Client performs person enrichment lookups.
type Client interface {
	EnrichPerson(ctx context.Context, req EnrichRequest) (*EnrichResponse, error)
}

// EnrichRequest identifies a person by name plus location.
type EnrichRequest struct {
	Name    string
	Company string
	City    string
	State   string
}

// EnrichResponse is the person record returned by the API.
type EnrichResponse struct {
	Likelihood int     `json:"likelihood"` // 0-10 provider match score
	Person     Person  `json:"data"`
}

// Person carries the contact facts we consume.
type Person struct {
	FullName     string   `json:"full_name"`
	JobTitle     string   `json:"job_title,omitempty"`
	JobCompany   string   `json:"job_company_name,omitempty"`
	MobilePhone  string   `json:"mobile_phone,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	Emails       []Email  `json:"emails,omitempty"`
	LocationCity string   `json:"location_locality,omitempty"`
	LocationState string  `json:"location_region,omitempty"`
}

// Email is one email address with its provider classification.
type Email struct {
	Address string `json:"address"`
	Type    string `json:"type"` // current_professional, personal, ...
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

// NewClient creates a People Data Labs client.
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

func (c *httpClient) EnrichPerson(ctx context.Context, req EnrichRequest) (*EnrichResponse, error) {
	q := url.Values{}
	q.Set("name", req.Name)
	if req.Company != "" {
		q.Set("company", req.Company)
	}
	if req.City != "" || req.State != "" {
		q.Set("locality", req.City)
		q.Set("region", req.State)
	}
	q.Set("min_likelihood", strconv.Itoa(2))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/person/enrich?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: create request")
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: read response")
	}

	// 404 means "no match", a normal empty result rather than a failure.
	if resp.StatusCode == http.StatusNotFound {
		return &EnrichResponse{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		httpErr := eris.Errorf("pdl: unexpected status %d: %s", resp.StatusCode, string(body))
		switch {
		case resilience.IsUnauthorizedHTTPStatus(resp.StatusCode):
			return nil, resilience.NewUnauthorizedError(httpErr, resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(httpErr, resp.StatusCode)
		default:
			return nil, httpErr
		}
	}

	var result EnrichResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "pdl: unmarshal response")
	}
	return &result, nil
}

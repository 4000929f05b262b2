// Package opencorp is a client for the corporate-registry aggregation API:
// company search across jurisdictions, officer lists, and filing details.
package opencorp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/resilience"
)

const defaultBaseURL = "https://api.opencorporates.com/v0.4"

// Client performs corporate registry lookups.
type Client interface {
	// SearchCompanies searches by name. jurisdiction may be empty for an
	// unfiltered cross-jurisdiction search.
	SearchCompanies(ctx context.Context, name, jurisdiction string) ([]Company, error)
	// GetCompany fetches full detail (officers, branch links) for one filing.
	GetCompany(ctx context.Context, jurisdiction, registryID string) (*Company, error)
}

// Company is a single registry filing.
type Company struct {
	RegistryID        string    `json:"company_number"`
	Name              string    `json:"name"`
	Jurisdiction      string    `json:"jurisdiction_code"`
	CompanyType       string    `json:"company_type"`
	Inactive          bool      `json:"inactive"`
	IsBranch          bool      `json:"branch"`
	RegisteredAgent   string    `json:"agent_name,omitempty"`
	RegisteredAddress string    `json:"registered_address_in_full,omitempty"`
	IncorporationDate string    `json:"incorporation_date,omitempty"`
	Officers          []Officer `json:"officers,omitempty"`
	// Home points at the parent filing when this record is a branch /
	// foreign registration.
	Home *HomeCompany `json:"home_company,omitempty"`
}

// Officer is one listed officer on a filing.
type Officer struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// HomeCompany references the parent filing of a branch registration.
type HomeCompany struct {
	Name         string `json:"name"`
	Jurisdiction string `json:"jurisdiction_code"`
	RegistryID   string `json:"company_number"`
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

// NewClient creates a registry API client.
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

func (c *httpClient) SearchCompanies(ctx context.Context, name, jurisdiction string) ([]Company, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("api_token", c.apiKey)
	if jurisdiction != "" {
		q.Set("jurisdiction_code", jurisdiction)
	}

	var result struct {
		Results struct {
			Companies []struct {
				Company Company `json:"company"`
			} `json:"companies"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/companies/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}

	out := make([]Company, 0, len(result.Results.Companies))
	for _, wrapped := range result.Results.Companies {
		out = append(out, wrapped.Company)
	}
	return out, nil
}

func (c *httpClient) GetCompany(ctx context.Context, jurisdiction, registryID string) (*Company, error) {
	q := url.Values{}
	q.Set("api_token", c.apiKey)

	var result struct {
		Results struct {
			Company companyDetail `json:"company"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/companies/%s/%s?%s", url.PathEscape(jurisdiction), url.PathEscape(registryID), q.Encode())
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	company := result.Results.Company.Company
	for _, wrapped := range result.Results.Company.OfficerList {
		company.Officers = append(company.Officers, wrapped.Officer)
	}
	return &company, nil
}

// companyDetail carries the detail endpoint's nested officer list.
type companyDetail struct {
	Company
	OfficerList []struct {
		Officer Officer `json:"officer"`
	} `json:"officers"`
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "opencorp: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "opencorp: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "opencorp: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("opencorp: unexpected status %d: %s", resp.StatusCode, string(body))
		switch {
		case resilience.IsUnauthorizedHTTPStatus(resp.StatusCode):
			return resilience.NewUnauthorizedError(err, resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return resilience.NewTransientError(err, resp.StatusCode)
		default:
			return err
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "opencorp: unmarshal response")
	}
	return nil
}

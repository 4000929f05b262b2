// Package endato is a client for the Endato skip-trace API, used to find
// phones and emails for a person or business.
package endato

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/resilience"
)

const defaultBaseURL = "https://devapi.endato.com"

// Client performs contact searches.
type Client interface {
	ContactSearch(ctx context.Context, req ContactSearchRequest) (*ContactSearchResponse, error)
}

// ContactSearchRequest identifies the subject to trace.
type ContactSearchRequest struct {
	Name    string `json:"name"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// ContactSearchResponse carries raw contact records with match metadata.
type ContactSearchResponse struct {
	Phones []PhoneRecord `json:"phones"`
	Emails []EmailRecord `json:"emails"`
}

// PhoneRecord is one phone hit with provider match signals.
type PhoneRecord struct {
	Number           string  `json:"number"`
	Type             string  `json:"type"` // mobile, landline, voip
	IsConnected      bool    `json:"is_connected"`
	NameMatchScore   float64 `json:"name_match_score"`
	AddressMatch     float64 `json:"address_match_score"`
	LastReportedDate string  `json:"last_reported_date"` // YYYY-MM-DD
	FirstReportedDate string `json:"first_reported_date,omitempty"`
}

// EmailRecord is one email hit with provider match signals.
type EmailRecord struct {
	Address          string  `json:"address"`
	IsValidated      bool    `json:"is_validated"`
	NameMatchScore   float64 `json:"name_match_score"`
	AddressMatch     float64 `json:"address_match_score"`
	LastReportedDate string  `json:"last_reported_date"`
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
	keyName   string
	keyValue  string
	baseURL   string
	http      *http.Client
}

// NewClient creates an Endato API client.
func NewClient(keyName, keyValue string, opts ...Option) Client {
	c := &httpClient{
		keyName:  keyName,
		keyValue: keyValue,
		baseURL:  defaultBaseURL,
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

func (c *httpClient) ContactSearch(ctx context.Context, req ContactSearchRequest) (*ContactSearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "endato: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Contact/Enrich", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "endato: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("galaxy-ap-name", c.keyName)
	httpReq.Header.Set("galaxy-ap-password", c.keyValue)
	httpReq.Header.Set("galaxy-search-type", "DevAPIContactEnrich")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "endato: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "endato: read response")
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := eris.Errorf("endato: unexpected status %d: %s", resp.StatusCode, string(respBody))
		switch {
		case resilience.IsUnauthorizedHTTPStatus(resp.StatusCode):
			return nil, resilience.NewUnauthorizedError(httpErr, resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(httpErr, resp.StatusCode)
		default:
			return nil, httpErr
		}
	}

	var result ContactSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "endato: unmarshal response")
	}
	return &result, nil
}

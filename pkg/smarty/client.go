// Package smarty is a client for the Smarty US street-address verification
// API, used by the address-validation pipeline step.
package smarty

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

const defaultBaseURL = "https://us-street.api.smarty.com"

// Client validates street addresses.
type Client interface {
	VerifyAddress(ctx context.Context, street, city, state, zip string) (*Verification, error)
}

// Verification is the canonicalized address result.
type Verification struct {
	Line1       string  `json:"delivery_line_1"`
	City        string  `json:"city_name"`
	State       string  `json:"state_abbreviation"`
	Zip         string  `json:"zipcode"`
	Plus4       string  `json:"plus4_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Deliverable bool    `json:"deliverable"`
	// MatchScore is derived from the DPV footnotes: 1.0 for a confirmed
	// deliverable match, lower for partial confirmation.
	MatchScore float64 `json:"match_score"`
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
	authID    string
	authToken string
	baseURL   string
	http      *http.Client
}

// NewClient creates a Smarty US street API client.
func NewClient(authID, authToken string, opts ...Option) Client {
	c := &httpClient{
		authID:    authID,
		authToken: authToken,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
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

// candidate mirrors the wire shape of one verification candidate.
type candidate struct {
	DeliveryLine1 string `json:"delivery_line_1"`
	Components    struct {
		CityName          string `json:"city_name"`
		StateAbbreviation string `json:"state_abbreviation"`
		Zipcode           string `json:"zipcode"`
		Plus4Code         string `json:"plus4_code"`
	} `json:"components"`
	Metadata struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"metadata"`
	Analysis struct {
		DPVMatchCode string `json:"dpv_match_code"` // Y, N, S, D
	} `json:"analysis"`
}

func (c *httpClient) VerifyAddress(ctx context.Context, street, city, state, zip string) (*Verification, error) {
	q := url.Values{}
	q.Set("auth-id", c.authID)
	q.Set("auth-token", c.authToken)
	q.Set("street", street)
	q.Set("city", city)
	q.Set("state", state)
	q.Set("zipcode", zip)
	q.Set("candidates", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/street-address?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "smarty: read response")
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := eris.Errorf("smarty: unexpected status %d: %s", resp.StatusCode, string(body))
		switch {
		case resilience.IsUnauthorizedHTTPStatus(resp.StatusCode):
			return nil, resilience.NewUnauthorizedError(httpErr, resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(httpErr, resp.StatusCode)
		default:
			return nil, httpErr
		}
	}

	var candidates []candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "smarty: unmarshal response")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	cand := candidates[0]
	v := &Verification{
		Line1:     cand.DeliveryLine1,
		City:      cand.Components.CityName,
		State:     cand.Components.StateAbbreviation,
		Zip:       cand.Components.Zipcode,
		Plus4:     cand.Components.Plus4Code,
		Latitude:  cand.Metadata.Latitude,
		Longitude: cand.Metadata.Longitude,
	}
	switch cand.Analysis.DPVMatchCode {
	case "Y":
		v.Deliverable = true
		v.MatchScore = 1.0
	case "S", "D":
		v.Deliverable = true
		v.MatchScore = 0.8
	default:
		v.MatchScore = 0.4
	}
	return v, nil
}

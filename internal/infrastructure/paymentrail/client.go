// Package paymentrail wraps the ACH payment-rail provider: customer profiles,
// on-demand authorizations, funding sources, and transfer initiation.
//
// Nothing in this package retries automatically. Funding-source creation and
// transfer initiation move or authorize money; callers supply an idempotency
// key and own any retry decision.
package paymentrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"horizon/internal/shared/apperrors"
)

const (
	serviceName = "payment_rail"

	defaultTimeout = 30 * time.Second
)

var tracer = otel.Tracer("horizon.paymentrail")

// Gateway is the payment-rail surface consumed by the domain.
type Gateway interface {
	CreateOnDemandAuthorization(ctx context.Context) (string, error)
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateFundingSource(ctx context.Context, customerRef, displayName, processorToken, idemKey string) (string, error)
	InitiateTransfer(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, idemKey string) (string, error)
}

// CustomerParams describes a new rail customer profile.
type CustomerParams struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Type       string `json:"type"`
	Address1   string `json:"address1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	DateOfBirth string `json:"dateOfBirth"`
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	key        string
	secret     string
}

// NewClient creates a new payment-rail API client.
func NewClient(baseURL, key, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		key:        key,
		secret:     secret,
	}
}

type onDemandAuthResponse struct {
	Links map[string]struct {
		Href string `json:"href"`
	} `json:"_links"`
}

// CreateOnDemandAuthorization obtains the authorization handle required before
// provisioning funding sources. An empty handle is a hard stop for the caller.
func (c *Client) CreateOnDemandAuthorization(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, "/on-demand-authorizations", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body onDemandAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperrors.External(serviceName, false, fmt.Errorf("failed to decode authorization response: %w", err))
	}

	self, ok := body.Links["self"]
	if !ok || self.Href == "" {
		return "", apperrors.Externalf(serviceName, false, "authorization response missing self link")
	}
	return self.Href, nil
}

// CreateCustomer provisions a customer profile and returns its resource ref.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	if params.Type == "" {
		params.Type = "personal"
	}
	resp, err := c.post(ctx, "/customers", params, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return c.locationRef(resp, "customer")
}

type fundingSourceRequest struct {
	Name       string `json:"name"`
	PlaidToken string `json:"plaidToken"`
}

// CreateFundingSource binds an account (via its processor token) to a customer
// as an ACH funding source. idemKey must be stable per (customer, account)
// pair within a linking attempt: the provider is not guaranteed idempotent on
// this call, so duplicate suppression rides on the key.
func (c *Client) CreateFundingSource(ctx context.Context, customerRef, displayName, processorToken, idemKey string) (string, error) {
	if idemKey == "" {
		return "", apperrors.Validation("idempotency key is required for funding-source creation")
	}

	path := fmt.Sprintf("/customers/%s/funding-sources", customerRef)
	resp, err := c.post(ctx, path, fundingSourceRequest{
		Name:       displayName,
		PlaidToken: processorToken,
	}, idemKey)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return c.locationRef(resp, "funding source")
}

type transferRequest struct {
	Links map[string]struct {
		Href string `json:"href"`
	} `json:"_links"`
	Amount struct {
		Currency string `json:"currency"`
		Value    string `json:"value"`
	} `json:"amount"`
}

// InitiateTransfer starts an ACH transfer between two funding sources.
func (c *Client) InitiateTransfer(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, idemKey string) (string, error) {
	if idemKey == "" {
		return "", apperrors.Validation("idempotency key is required for transfer initiation")
	}
	if !amount.IsPositive() {
		return "", apperrors.Validation("transfer amount must be positive, got %s", amount)
	}

	req := transferRequest{
		Links: map[string]struct {
			Href string `json:"href"`
		}{
			"source":      {Href: sourceRef},
			"destination": {Href: destRef},
		},
	}
	req.Amount.Currency = "USD"
	req.Amount.Value = amount.StringFixed(2)

	resp, err := c.post(ctx, "/transfers", req, idemKey)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return c.locationRef(resp, "transfer")
}

// post sends a JSON request with Basic auth. Provider refs come back in the
// Location header, so the raw response is returned for the caller to consume.
func (c *Client) post(ctx context.Context, path string, payload any, idemKey string) (*http.Response, error) {
	ctx, span := tracer.Start(ctx, "paymentrail"+path)
	defer span.End()

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.dwolla.v1.hal+json")
	req.Header.Set("Accept", "application/vnd.dwolla.v1.hal+json")
	req.SetBasicAuth(c.key, c.secret)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.External(serviceName, false, fmt.Errorf("request to %s failed: %w", path, err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		span.SetStatus(codes.Error, resp.Status)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.External(serviceName, false,
			fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body)))
	}
	return resp, nil
}

func (c *Client) locationRef(resp *http.Response, resource string) (string, error) {
	ref := resp.Header.Get("Location")
	if ref == "" {
		return "", apperrors.Externalf(serviceName, false, "provider did not return a %s location", resource)
	}
	return ref, nil
}

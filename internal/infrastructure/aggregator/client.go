// Package aggregator wraps the account-data aggregator API: token exchange,
// account listing, institution lookup, and cursor-paginated activity sync.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"horizon/internal/shared/apperrors"
)

const (
	serviceName = "aggregator"

	linkTokenPath      = "/link/token/create"
	exchangePath       = "/item/public_token/exchange"
	accountsPath       = "/accounts/get"
	institutionsPath   = "/institutions/get_by_id"
	activitySyncPath   = "/transactions/sync"
	processorTokenPath = "/processor/token/create"

	defaultTimeout  = 30 * time.Second
	defaultMaxPages = 250
	defaultRetries  = 3
)

// ErrSyncPageLimit is returned when the activity sync exceeds the configured
// page guard without the provider signalling completion.
var ErrSyncPageLimit = fmt.Errorf("activity sync exceeded the configured page limit")

var tracer = otel.Tracer("horizon.aggregator")

// Gateway is the aggregator surface consumed by the domain.
type Gateway interface {
	CreateLinkToken(ctx context.Context, userID int64, clientName string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	ListAccounts(ctx context.Context, accessToken string) (*AccountsResult, error)
	GetInstitution(ctx context.Context, institutionID string) (*Institution, error)
	SyncActivity(ctx context.Context, accessToken, accountID string) ([]ActivityRecord, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error)
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	secret        string
	maxPages      int
	retryAttempts int
}

// Options configures a Client beyond its credentials.
type Options struct {
	Timeout       time.Duration
	SyncMaxPages  int
	RetryAttempts int
}

// NewClient creates a new aggregator API client.
func NewClient(baseURL, clientID, secret string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.SyncMaxPages <= 0 {
		opts.SyncMaxPages = defaultMaxPages
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetries
	}
	return &Client{
		httpClient:    &http.Client{Timeout: opts.Timeout},
		baseURL:       baseURL,
		clientID:      clientID,
		secret:        secret,
		maxPages:      opts.SyncMaxPages,
		retryAttempts: opts.RetryAttempts,
	}
}

// CreateLinkToken requests a one-time link token for the given user.
func (c *Client) CreateLinkToken(ctx context.Context, userID int64, clientName string) (string, error) {
	var resp linkTokenCreateResponse
	err := c.post(ctx, linkTokenPath, linkTokenCreateRequest{
		ClientUserID: strconv.FormatInt(userID, 10),
		ClientName:   clientName,
		Language:     "en",
		CountryCodes: []string{"US"},
		Products:     []string{"auth", "transactions"},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken trades a one-time public token for a durable access
// token and its item id. Never retried: a consumed token cannot be exchanged
// twice.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	var resp ExchangeResult
	if err := c.post(ctx, exchangePath, publicTokenExchangeRequest{PublicToken: publicToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAccounts returns every account under an access token. An empty slice is
// a valid result. Idempotent read, retried with backoff.
func (c *Client) ListAccounts(ctx context.Context, accessToken string) (*AccountsResult, error) {
	var resp accountsGetResponse
	err := c.retryRead(ctx, func() error {
		return c.post(ctx, accountsPath, accountsGetRequest{AccessToken: accessToken}, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &AccountsResult{
		Accounts:      resp.Accounts,
		ItemID:        resp.Item.ItemID,
		InstitutionID: resp.Item.InstitutionID,
	}, nil
}

// GetInstitution fetches institution metadata. Idempotent read, retried.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*Institution, error) {
	var resp institutionsGetResponse
	err := c.retryRead(ctx, func() error {
		return c.post(ctx, institutionsPath, institutionsGetRequest{
			InstitutionID: institutionID,
			CountryCodes:  []string{"US"},
		}, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp.Institution, nil
}

// SyncActivity walks the provider's cursor-paginated activity feed and returns
// every entry belonging to accountID, exactly once, in arrival order. The loop
// stops when the provider signals no more pages, and aborts with
// ErrSyncPageLimit if it runs past the configured page guard.
func (c *Client) SyncActivity(ctx context.Context, accessToken, accountID string) ([]ActivityRecord, error) {
	ctx, span := tracer.Start(ctx, "aggregator.SyncActivity",
		trace.WithAttributes(attribute.String("aggregator.account_id", accountID)))
	defer span.End()

	var (
		records []ActivityRecord
		cursor  string
	)

	for page := 0; ; page++ {
		if page >= c.maxPages {
			span.SetStatus(codes.Error, "page limit exceeded")
			return nil, apperrors.External(serviceName, false,
				fmt.Errorf("%w (%d pages)", ErrSyncPageLimit, c.maxPages))
		}

		var resp activitySyncResponse
		err := c.retryRead(ctx, func() error {
			return c.post(ctx, activitySyncPath, activitySyncRequest{
				AccessToken: accessToken,
				Cursor:      cursor,
			}, &resp)
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		for _, entry := range resp.Added {
			if entry.AccountID != accountID {
				continue
			}
			date, err := time.Parse("2006-01-02", entry.Date)
			if err != nil {
				return nil, apperrors.External(serviceName, false,
					fmt.Errorf("unparseable activity date %q: %w", entry.Date, err))
			}
			records = append(records, ActivityRecord{
				ID:       entry.TransactionID,
				Name:     entry.Name,
				Amount:   entry.Amount,
				Pending:  entry.Pending,
				Category: entry.Category.Primary,
				Channel:  entry.PaymentChannel,
				Date:     date,
				Cursor:   resp.NextCursor,
			})
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	span.SetAttributes(attribute.Int("aggregator.activity_count", len(records)))
	return records, nil
}

// CreateProcessorToken mints a processor token proving account ownership to
// the given payment rail. Never retried.
func (c *Client) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error) {
	var resp processorTokenCreateResponse
	err := c.post(ctx, processorTokenPath, processorTokenCreateRequest{
		AccessToken: accessToken,
		AccountID:   accountID,
		Processor:   processor,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ProcessorToken, nil
}

// retryRead retries an idempotent read with exponential backoff, up to the
// configured attempt count. Non-retryable failures stop immediately.
func (c *Client) retryRead(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.retryAttempts)),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// post sends a JSON request and decodes the response into out, mapping
// transport and provider errors into the external-service taxonomy.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	ctx, span := tracer.Start(ctx, "aggregator"+path)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperrors.External(serviceName, true, fmt.Errorf("request to %s failed: %w", path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.External(serviceName, true, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		retryable := resp.StatusCode >= http.StatusInternalServerError ||
			resp.StatusCode == http.StatusTooManyRequests

		var errResp errorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.ErrorCode != "" {
			return apperrors.External(serviceName, retryable,
				fmt.Errorf("%s %s: %s", errResp.ErrorType, errResp.ErrorCode, errResp.ErrorMessage))
		}
		return apperrors.External(serviceName, retryable,
			fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.External(serviceName, false, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return nil
}

package paymentrail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizon/internal/shared/apperrors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key", "secret", 0)
}

func TestCreateCustomer_RefFromLocationHeader(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customers", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		var params CustomerParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "personal", params.Type, "type must default to personal")

		w.Header().Set("Location", "https://rail.test/customers/cus-1")
		w.WriteHeader(http.StatusCreated)
	})

	ref, err := newTestClient(t, srv).CreateCustomer(context.Background(), CustomerParams{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://rail.test/customers/cus-1", ref)
}

func TestCreateCustomer_MissingLocationIsAnError(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	_, err := newTestClient(t, srv).CreateCustomer(context.Background(), CustomerParams{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestCreateFundingSource_SendsIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customers/cus-1/funding-sources", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")

		var body fundingSourceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Checking", body.Name)
		assert.Equal(t, "processor-token-1", body.PlaidToken)

		w.Header().Set("Location", "https://rail.test/funding-sources/fs-1")
		w.WriteHeader(http.StatusCreated)
	})

	ref, err := newTestClient(t, srv).CreateFundingSource(context.Background(), "cus-1", "Checking", "processor-token-1", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "https://rail.test/funding-sources/fs-1", ref)
	assert.Equal(t, "idem-1", gotKey)
}

func TestCreateFundingSource_RejectsEmptyIdempotencyKey(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request may be sent without an idempotency key")
	})

	_, err := newTestClient(t, srv).CreateFundingSource(context.Background(), "cus-1", "Checking", "tok", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestInitiateTransfer_FormatsAmountAsFixedTwoUSD(t *testing.T) {
	var body transferRequest
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Location", "https://rail.test/transfers/tr-1")
		w.WriteHeader(http.StatusCreated)
	})

	ref, err := newTestClient(t, srv).InitiateTransfer(context.Background(),
		"https://rail.test/funding-sources/fs-1",
		"https://rail.test/funding-sources/fs-2",
		decimal.NewFromFloat(12.5), "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "https://rail.test/transfers/tr-1", ref)
	assert.Equal(t, "USD", body.Amount.Currency)
	assert.Equal(t, "12.50", body.Amount.Value)
	assert.Equal(t, "https://rail.test/funding-sources/fs-1", body.Links["source"].Href)
	assert.Equal(t, "https://rail.test/funding-sources/fs-2", body.Links["destination"].Href)
}

func TestInitiateTransfer_Validation(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid transfers must never reach the provider")
	})
	c := newTestClient(t, srv)

	_, err := c.InitiateTransfer(context.Background(), "s", "d", decimal.NewFromInt(1), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = c.InitiateTransfer(context.Background(), "s", "d", decimal.Zero, "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCreateOnDemandAuthorization(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/on-demand-authorizations", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"_links": map[string]any{
				"self": map[string]string{"href": "https://rail.test/on-demand-authorizations/auth-1"},
			},
		})
	})

	ref, err := newTestClient(t, srv).CreateOnDemandAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://rail.test/on-demand-authorizations/auth-1", ref)
}

func TestPost_ProviderErrorIsExternalAndNotRetried(t *testing.T) {
	calls := 0
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"ValidationError"}`))
	})

	_, err := newTestClient(t, srv).CreateCustomer(context.Background(), CustomerParams{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Equal(t, 1, calls)
}

package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"horizon/internal/domain/banklink"
	"horizon/internal/infrastructure/paymentrail"
	"horizon/internal/shared/apperrors"
)

type mockRepo struct {
	createFunc  func(ctx context.Context, params CreateParams) (*Transfer, error)
	getByIDFunc func(ctx context.Context, id int64) (*Transfer, error)
	created     []CreateParams
	settled     []int64
}

func (m *mockRepo) Create(ctx context.Context, params CreateParams) (*Transfer, error) {
	m.created = append(m.created, params)
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return &Transfer{
		ID:             int64(len(m.created)),
		Name:           params.Name,
		SenderUserID:   params.SenderUserID,
		ReceiverUserID: params.ReceiverUserID,
		SenderLinkID:   params.SenderLinkID,
		ReceiverLinkID: params.ReceiverLinkID,
		Amount:         params.Amount,
		Category:       params.Category,
		Channel:        params.Channel,
		Pending:        params.Pending,
		OccurredAt:     params.OccurredAt,
	}, nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Transfer, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListForLink(ctx context.Context, userID, linkID int64) ([]*Transfer, error) {
	return nil, nil
}

func (m *mockRepo) ListByUser(ctx context.Context, userID int64) ([]*Transfer, error) {
	return nil, nil
}

func (m *mockRepo) SetPending(ctx context.Context, id int64, pending bool) error {
	if !pending {
		m.settled = append(m.settled, id)
	}
	return nil
}

type mockLinkRepo struct {
	links map[int64]*banklink.BankLink
}

func (m *mockLinkRepo) Create(ctx context.Context, params banklink.CreateParams) (*banklink.BankLink, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLinkRepo) GetByID(ctx context.Context, id int64) (*banklink.BankLink, error) {
	l, ok := m.links[id]
	if !ok {
		return nil, banklink.ErrNotFound
	}
	return l, nil
}

func (m *mockLinkRepo) GetByHandle(ctx context.Context, handle string) (*banklink.BankLink, error) {
	for _, l := range m.links {
		if l.PublicHandle == handle {
			return l, nil
		}
	}
	return nil, banklink.ErrNotFound
}

func (m *mockLinkRepo) ListByUser(ctx context.Context, userID int64) ([]*banklink.BankLink, error) {
	return nil, nil
}

func (m *mockLinkRepo) UpdateFundingSource(ctx context.Context, id int64, ref string) error {
	return nil
}

func (m *mockLinkRepo) Delete(ctx context.Context, id int64) error { return nil }

type mockRail struct {
	initiateTransferFunc func(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, idemKey string) (string, error)
}

func (m *mockRail) CreateOnDemandAuthorization(ctx context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockRail) CreateCustomer(ctx context.Context, params paymentrail.CustomerParams) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockRail) CreateFundingSource(ctx context.Context, customerRef, displayName, processorToken, idemKey string) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockRail) InitiateTransfer(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, idemKey string) (string, error) {
	return m.initiateTransferFunc(ctx, sourceRef, destRef, amount, idemKey)
}

func ref(s string) *string { return &s }

func testLinks() *mockLinkRepo {
	return &mockLinkRepo{links: map[int64]*banklink.BankLink{
		11: {ID: 11, UserID: 7, PublicHandle: "handle-sender", FundingSourceRef: ref("https://rail.test/funding-sources/fs-11")},
		22: {ID: 22, UserID: 8, PublicHandle: "handle-receiver", FundingSourceRef: ref("https://rail.test/funding-sources/fs-22")},
		33: {ID: 33, UserID: 8, PublicHandle: "handle-no-fs"},
	}}
}

func createParams() CreateParams {
	return CreateParams{
		Name:           "Rent split",
		SenderUserID:   7,
		ReceiverUserID: 8,
		SenderLinkID:   11,
		ReceiverLinkID: 22,
		Amount:         decimal.NewFromInt(125),
		Category:       "TRANSFER",
	}
}

func TestCreate_DefaultsChannelAndOccurredAt(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

	before := time.Now().UTC()
	created, err := svc.Create(context.Background(), createParams())
	require.NoError(t, err)

	assert.Equal(t, "internal", created.Channel)
	assert.False(t, created.OccurredAt.Before(before))
	assert.True(t, created.Amount.Equal(decimal.NewFromInt(125)))
}

func TestCreate_KeepsExplicitOccurredAt(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

	params := createParams()
	params.OccurredAt = time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	params.Channel = "scheduled"

	created, err := svc.Create(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, params.OccurredAt, created.OccurredAt)
	assert.Equal(t, "scheduled", created.Channel)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"zero amount", func(p *CreateParams) { p.Amount = decimal.Zero }},
		{"negative amount", func(p *CreateParams) { p.Amount = decimal.NewFromInt(-5) }},
		{"unknown sender link", func(p *CreateParams) { p.SenderLinkID = 999 }},
		{"unknown receiver link", func(p *CreateParams) { p.ReceiverLinkID = 999 }},
		{"sender link owned by someone else", func(p *CreateParams) { p.SenderLinkID = 22 }},
		{"receiver link owned by someone else", func(p *CreateParams) { p.ReceiverLinkID = 11 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

			params := createParams()
			tc.mutate(&params)
			_, err := svc.Create(context.Background(), params)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Empty(t, repo.created, "nothing may be persisted on validation failure")
		})
	}
}

func TestInitiateRailTransfer_Success(t *testing.T) {
	var gotSource, gotDest, gotKey string
	rail := &mockRail{
		initiateTransferFunc: func(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, idemKey string) (string, error) {
			gotSource, gotDest, gotKey = sourceRef, destRef, idemKey
			return "https://rail.test/transfers/tr-1", nil
		},
	}
	svc := NewService(&mockRepo{}, testLinks(), rail, zap.NewNop())

	refURL, err := svc.InitiateRailTransfer(context.Background(), 7, "handle-sender", "handle-receiver", decimal.NewFromFloat(12.34), "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "https://rail.test/transfers/tr-1", refURL)
	assert.Equal(t, "https://rail.test/funding-sources/fs-11", gotSource)
	assert.Equal(t, "https://rail.test/funding-sources/fs-22", gotDest)
	assert.Equal(t, "idem-1", gotKey)
}

func TestInitiateRailTransfer_RequiresIdempotencyKey(t *testing.T) {
	svc := NewService(&mockRepo{}, testLinks(), &mockRail{}, zap.NewNop())

	_, err := svc.InitiateRailTransfer(context.Background(), 7, "handle-sender", "handle-receiver", decimal.NewFromInt(1), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestInitiateRailTransfer_SourceMustBelongToCaller(t *testing.T) {
	svc := NewService(&mockRepo{}, testLinks(), &mockRail{}, zap.NewNop())

	_, err := svc.InitiateRailTransfer(context.Background(), 7, "handle-receiver", "handle-sender", decimal.NewFromInt(1), "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestInitiateRailTransfer_RequiresFundingSources(t *testing.T) {
	svc := NewService(&mockRepo{}, testLinks(), &mockRail{}, zap.NewNop())

	_, err := svc.InitiateRailTransfer(context.Background(), 7, "handle-sender", "handle-no-fs", decimal.NewFromInt(1), "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "destination account has no funding source")
}

func TestSettle(t *testing.T) {
	pendingTransfer := func() *Transfer {
		return &Transfer{ID: 42, SenderUserID: 7, ReceiverUserID: 8, Pending: true}
	}

	t.Run("clears pending for a party", func(t *testing.T) {
		repo := &mockRepo{getByIDFunc: func(ctx context.Context, id int64) (*Transfer, error) {
			return pendingTransfer(), nil
		}}
		svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

		settled, err := svc.Settle(context.Background(), 8, 42)
		require.NoError(t, err)
		assert.False(t, settled.Pending)
		assert.Equal(t, []int64{42}, repo.settled)
	})

	t.Run("already settled is a no-op", func(t *testing.T) {
		repo := &mockRepo{getByIDFunc: func(ctx context.Context, id int64) (*Transfer, error) {
			tr := pendingTransfer()
			tr.Pending = false
			return tr, nil
		}}
		svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

		settled, err := svc.Settle(context.Background(), 7, 42)
		require.NoError(t, err)
		assert.False(t, settled.Pending)
		assert.Empty(t, repo.settled)
	})

	t.Run("non-party reads as not found", func(t *testing.T) {
		repo := &mockRepo{getByIDFunc: func(ctx context.Context, id int64) (*Transfer, error) {
			return pendingTransfer(), nil
		}}
		svc := NewService(repo, testLinks(), &mockRail{}, zap.NewNop())

		_, err := svc.Settle(context.Background(), 99, 42)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		assert.Empty(t, repo.settled)
	})

	t.Run("unknown transfer", func(t *testing.T) {
		svc := NewService(&mockRepo{}, testLinks(), &mockRail{}, zap.NewNop())

		_, err := svc.Settle(context.Background(), 7, 404)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

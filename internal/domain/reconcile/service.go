// Package reconcile merges aggregator-sourced account activity with
// internally recorded transfers into one ordered view, and aggregates
// balances across all of a user's linked accounts.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"horizon/internal/domain/banklink"
	"horizon/internal/domain/transfer"
	"horizon/internal/infrastructure/aggregator"
	"horizon/internal/infrastructure/crypto"
	"horizon/internal/shared/apperrors"
)

var tracer = otel.Tracer("horizon.reconcile")

// Engine reconciles the two transaction sources and aggregates balances.
type Engine struct {
	agg            aggregator.Gateway
	links          banklink.Repository
	transfers      transfer.Repository
	enc            *crypto.Encryptor
	maxConcurrency int
	log            *zap.Logger
}

// NewEngine creates a reconciliation engine. maxConcurrency bounds the
// concurrent per-item aggregator calls in GetAllAccounts.
func NewEngine(
	agg aggregator.Gateway,
	links banklink.Repository,
	transfers transfer.Repository,
	enc *crypto.Encryptor,
	maxConcurrency int,
	log *zap.Logger,
) *Engine {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Engine{
		agg:            agg,
		links:          links,
		transfers:      transfers,
		enc:            enc,
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

// GetAccount returns one linked account's live view plus its reconciled feed:
// externally synced activity and internally recorded transfers, merged and
// sorted by date descending. The sort is stable; entries sharing a date keep
// arrival order (external before internal).
func (e *Engine) GetAccount(ctx context.Context, userID int64, handle string) (*AccountDetail, error) {
	ctx, span := tracer.Start(ctx, "reconcile.GetAccount")
	defer span.End()

	link, err := e.links.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, banklink.ErrNotFound) {
			return nil, apperrors.NotFound("bank not found")
		}
		return nil, err
	}
	if link.UserID != userID {
		// Do not reveal that the handle exists for someone else.
		return nil, apperrors.NotFound("bank not found")
	}

	accessToken, err := e.enc.Decrypt(link.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for link %d: %w", link.ID, err)
	}

	listing, err := e.agg.ListAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	var acct *aggregator.Account
	for i := range listing.Accounts {
		if listing.Accounts[i].AccountID == link.AccountID {
			acct = &listing.Accounts[i]
			break
		}
	}
	if acct == nil {
		return nil, apperrors.NotFound("account data not found")
	}

	institution, err := e.agg.GetInstitution(ctx, listing.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch institution: %w", err)
	}

	activity, err := e.agg.SyncActivity(ctx, accessToken, link.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync activity: %w", err)
	}

	internal, err := e.transfers.ListForLink(ctx, userID, link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfers: %w", err)
	}

	feed := make([]FeedEntry, 0, len(activity)+len(internal))
	for _, rec := range activity {
		feed = append(feed, projectActivity(rec))
	}
	for _, tx := range internal {
		feed = append(feed, projectTransfer(tx, link.ID))
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Date.After(feed[j].Date)
	})

	return &AccountDetail{
		Account: accountView(*acct, link, institution.InstitutionID),
		Feed:    feed,
	}, nil
}

// GetAllAccounts aggregates every linked account of a user. Accounts sharing
// one external item share a single upstream fetch; items are fetched
// concurrently, bounded by the configured maximum. A failed item's accounts
// are excluded from the result and reported in FailedItems rather than
// silently zeroed. The account order is unspecified.
func (e *Engine) GetAllAccounts(ctx context.Context, userID int64) (*Portfolio, error) {
	ctx, span := tracer.Start(ctx, "reconcile.GetAllAccounts",
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	links, err := e.links.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank links: %w", err)
	}

	linksByAccountID := make(map[string]*banklink.BankLink, len(links))
	linksByItem := make(map[string]*banklink.BankLink)
	for _, l := range links {
		linksByAccountID[l.AccountID] = l
		// One fetch per distinct item; any of the item's links carries a
		// usable token.
		if _, seen := linksByItem[l.ItemID]; !seen {
			linksByItem[l.ItemID] = l
		}
	}

	var (
		mu       sync.Mutex
		accounts []AccountView
		failed   []ItemFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for itemID, itemLink := range linksByItem {
		itemID, itemLink := itemID, itemLink
		g.Go(func() error {
			views, err := e.fetchItemAccounts(gctx, itemLink, linksByAccountID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.Warn("item fetch failed during portfolio aggregation",
					zap.Int64("user_id", userID),
					zap.String("item_id", itemID),
					zap.Error(err))
				failed = append(failed, ItemFailure{ItemID: itemID, Error: err.Error()})
				return nil
			}
			accounts = append(accounts, views...)
			return nil
		})
	}
	// Per-item errors are collected, not returned, so Wait only reflects
	// context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, a := range accounts {
		if a.CurrentBalance != nil {
			total = total.Add(decimal.NewFromFloat(*a.CurrentBalance))
		}
	}

	span.SetAttributes(
		attribute.Int("reconcile.accounts", len(accounts)),
		attribute.Int("reconcile.failed_items", len(failed)),
	)
	return &Portfolio{
		Accounts:            accounts,
		TotalLinks:          len(accounts),
		TotalCurrentBalance: total,
		FailedItems:         failed,
	}, nil
}

// fetchItemAccounts performs the single upstream fetch for one item and
// projects every returned account that matches a known bank link. Accounts
// with no matching link are dropped.
func (e *Engine) fetchItemAccounts(ctx context.Context, itemLink *banklink.BankLink, linksByAccountID map[string]*banklink.BankLink) ([]AccountView, error) {
	accessToken, err := e.enc.Decrypt(itemLink.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	listing, err := e.agg.ListAccounts(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var views []AccountView
	for _, acct := range listing.Accounts {
		link, ok := linksByAccountID[acct.AccountID]
		if !ok {
			continue
		}
		views = append(views, accountView(acct, link, listing.InstitutionID))
	}
	return views, nil
}

func accountView(acct aggregator.Account, link *banklink.BankLink, institutionID string) AccountView {
	return AccountView{
		AccountID:        acct.AccountID,
		AvailableBalance: acct.AvailableBalance,
		CurrentBalance:   acct.CurrentBalance,
		InstitutionID:    institutionID,
		Name:             acct.Name,
		OfficialName:     acct.OfficialName,
		Mask:             acct.Mask,
		Type:             acct.Type,
		Subtype:          acct.Subtype,
		BankLinkID:       link.ID,
		PublicHandle:     link.PublicHandle,
	}
}

func projectActivity(rec aggregator.ActivityRecord) FeedEntry {
	// The aggregator reports outflows as positive amounts.
	direction := DirectionCredit
	if rec.Amount > 0 {
		direction = DirectionDebit
	}
	return FeedEntry{
		ID:        rec.ID,
		Name:      rec.Name,
		Amount:    decimal.NewFromFloat(rec.Amount),
		Date:      rec.Date,
		Channel:   rec.Channel,
		Category:  rec.Category,
		Direction: direction,
		Pending:   rec.Pending,
		Source:    SourceExternal,
	}
}

func projectTransfer(tx *transfer.Transfer, viewedLinkID int64) FeedEntry {
	direction := DirectionCredit
	if tx.SenderLinkID == viewedLinkID {
		direction = DirectionDebit
	}
	return FeedEntry{
		ID:        fmt.Sprintf("transfer-%d", tx.ID),
		Name:      tx.Name,
		Amount:    tx.Amount,
		Date:      tx.OccurredAt,
		Channel:   tx.Channel,
		Category:  tx.Category,
		Direction: direction,
		Pending:   tx.Pending,
		Source:    SourceInternal,
	}
}

// Package linking drives the saga that turns a one-time link token into
// persisted bank links, each optionally backed by a payment-rail funding
// source.
package linking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"horizon/internal/domain/banklink"
	"horizon/internal/domain/user"
	"horizon/internal/infrastructure/aggregator"
	"horizon/internal/infrastructure/crypto"
	"horizon/internal/infrastructure/paymentrail"
	"horizon/internal/shared/handle"
)

const processorRail = "dwolla"

var tracer = otel.Tracer("horizon.linking")

// Orchestrator runs linking attempts. Failures in token exchange or account
// enumeration abort the whole attempt; everything after is isolated per
// account, so one account's provisioning failure never rolls back or blocks
// its siblings.
type Orchestrator struct {
	agg   aggregator.Gateway
	rail  paymentrail.Gateway
	links banklink.Repository
	enc   *crypto.Encryptor
	codec *handle.Codec
	log   *zap.Logger
}

// NewOrchestrator creates a linking orchestrator.
func NewOrchestrator(
	agg aggregator.Gateway,
	rail paymentrail.Gateway,
	links banklink.Repository,
	enc *crypto.Encryptor,
	codec *handle.Codec,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{agg: agg, rail: rail, links: links, enc: enc, codec: codec, log: log}
}

// LinkAccounts exchanges publicToken and links every eligible account it
// reveals, returning a per-account outcome list.
func (o *Orchestrator) LinkAccounts(ctx context.Context, owner *user.User, publicToken string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "linking.LinkAccounts",
		trace.WithAttributes(attribute.Int64("user.id", owner.ID)))
	defer span.End()

	// EXCHANGING: precedes all persistence, so a failure leaves no partial state.
	span.AddEvent(StateExchanging)
	exchange, err := o.agg.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		span.SetStatus(codes.Error, StateFailed)
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	span.AddEvent(StateEnumerating)
	listing, err := o.agg.ListAccounts(ctx, exchange.AccessToken)
	if err != nil {
		span.SetStatus(codes.Error, StateFailed)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := &Result{ItemID: exchange.ItemID}
	if len(listing.Accounts) == 0 {
		// Terminal "nothing to link", not an error.
		result.NoAccounts = true
		o.log.Info("linking attempt found no accounts",
			zap.Int64("user_id", owner.ID),
			zap.String("item_id", exchange.ItemID))
		return result, nil
	}

	encryptedToken, err := o.enc.Encrypt(exchange.AccessToken)
	if err != nil {
		span.SetStatus(codes.Error, StateFailed)
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	for _, acct := range listing.Accounts {
		outcome, skipped := o.linkAccount(ctx, owner, exchange.ItemID, encryptedToken, exchange.AccessToken, acct)
		if skipped {
			continue
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	span.SetAttributes(
		attribute.Int("linking.accounts", len(listing.Accounts)),
		attribute.Int("linking.linked", result.Linked()),
	)
	span.AddEvent(StateDone)
	return result, nil
}

// linkAccount runs the per-account leg of the saga: classify, optionally
// provision on the rail, persist. Returns skipped=true for accounts missing
// type information, which are neither linked nor reported.
func (o *Orchestrator) linkAccount(
	ctx context.Context,
	owner *user.User,
	itemID, encryptedToken, accessToken string,
	acct aggregator.Account,
) (Outcome, bool) {
	// CLASSIFYING
	if acct.Type == "" || acct.Subtype == "" {
		o.log.Info("skipping account without type information",
			zap.Int64("user_id", owner.ID),
			zap.String("account_id", acct.AccountID))
		return Outcome{}, true
	}

	var fundingSourceRef *string
	if railEligible(acct.Type, acct.Subtype) {
		// PROVISIONING: a failure here fails this account only, and by policy
		// no bank-link row is persisted for a rail-eligible account whose
		// funding source could not be provisioned.
		ref, err := o.provisionFundingSource(ctx, owner, acct, accessToken)
		if err != nil {
			o.log.Warn("funding-source provisioning failed",
				zap.Int64("user_id", owner.ID),
				zap.String("account_id", acct.AccountID),
				zap.Error(err))
			return Outcome{
				AccountID: acct.AccountID,
				BankName:  acct.Name,
				Status:    StatusFailed,
				Error:     err.Error(),
			}, false
		}
		fundingSourceRef = &ref
	}

	// PERSISTING
	publicHandle, err := o.codec.Encode(acct.AccountID)
	if err != nil {
		return Outcome{AccountID: acct.AccountID, BankName: acct.Name, Status: StatusFailed, Error: err.Error()}, false
	}

	link, err := o.links.Create(ctx, banklink.CreateParams{
		UserID:           owner.ID,
		ItemID:           itemID,
		AccountID:        acct.AccountID,
		EncryptedToken:   encryptedToken,
		FundingSourceRef: fundingSourceRef,
		PublicHandle:     publicHandle,
		BankName:         acct.Name,
	})
	if err != nil {
		o.log.Warn("failed to persist bank link",
			zap.Int64("user_id", owner.ID),
			zap.String("account_id", acct.AccountID),
			zap.Error(err))
		return Outcome{AccountID: acct.AccountID, BankName: acct.Name, Status: StatusFailed, Error: err.Error()}, false
	}

	return Outcome{
		AccountID: acct.AccountID,
		BankName:  acct.Name,
		Status:    StatusLinked,
		LinkID:    link.ID,
	}, false
}

// provisionFundingSource mints a processor token and binds the account on the
// payment rail. The idempotency key is derived from (customer, account) so a
// retried attempt cannot create a duplicate funding source.
func (o *Orchestrator) provisionFundingSource(ctx context.Context, owner *user.User, acct aggregator.Account, accessToken string) (string, error) {
	if owner.RailCustomerRef == nil || *owner.RailCustomerRef == "" {
		return "", fmt.Errorf("user %d has no payment-rail customer profile", owner.ID)
	}

	processorToken, err := o.agg.CreateProcessorToken(ctx, accessToken, acct.AccountID, processorRail)
	if err != nil {
		return "", fmt.Errorf("failed to create processor token: %w", err)
	}

	// The orchestrator treats a missing authorization handle as a hard stop.
	authRef, err := o.rail.CreateOnDemandAuthorization(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create on-demand authorization: %w", err)
	}
	if authRef == "" {
		return "", fmt.Errorf("payment rail returned an empty authorization handle")
	}

	idemKey := uuid.NewSHA1(uuid.NameSpaceURL, []byte(*owner.RailCustomerRef+"|"+acct.AccountID)).String()
	ref, err := o.rail.CreateFundingSource(ctx, *owner.RailCustomerRef, acct.Name, processorToken, idemKey)
	if err != nil {
		return "", fmt.Errorf("failed to create funding source: %w", err)
	}
	return ref, nil
}

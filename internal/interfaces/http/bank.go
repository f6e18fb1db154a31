package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"horizon/internal/domain/banklink"
	"horizon/internal/domain/linking"
	"horizon/internal/domain/reconcile"
	"horizon/internal/domain/user"
	"horizon/internal/infrastructure/aggregator"
	"horizon/internal/shared/middleware"
)

const clientName = "Horizon"

type BankHandler struct {
	links     banklink.Repository
	users     *user.Service
	linker    *linking.Orchestrator
	reconcile *reconcile.Engine
	agg       aggregator.Gateway
	log       *zap.Logger
}

func NewBankHandler(
	links banklink.Repository,
	users *user.Service,
	linker *linking.Orchestrator,
	engine *reconcile.Engine,
	agg aggregator.Gateway,
	log *zap.Logger,
) *BankHandler {
	return &BankHandler{
		links:     links,
		users:     users,
		linker:    linker,
		reconcile: engine,
		agg:       agg,
		log:       log,
	}
}

type LinkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

type LinkBankRequest struct {
	PublicToken string `json:"public_token"`
}

// HandleCreateLinkToken mints a one-time link token for starting a linking
// attempt in the client.
func (h *BankHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := h.agg.CreateLinkToken(r.Context(), userID, clientName)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, LinkTokenResponse{LinkToken: token})
}

// HandleLinkBank exchanges a public token and links every account it reveals,
// returning the per-account outcomes.
func (h *BankHandler) HandleLinkBank(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req LinkBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "public_token is required", http.StatusBadRequest)
		return
	}

	owner, err := h.users.Get(r.Context(), userID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	result, err := h.linker.LinkAccounts(r.Context(), owner, req.PublicToken)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleListBanks returns the authenticated user's bank-link summaries.
func (h *BankHandler) HandleListBanks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	links, err := h.links.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	summaries := make([]banklink.Summary, 0, len(links))
	for _, l := range links {
		summaries = append(summaries, l.Summarize())
	}
	respondJSON(w, http.StatusOK, summaries)
}

// HandleUnlinkBank deletes a bank link by its public handle.
func (h *BankHandler) HandleUnlinkBank(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	link, err := h.links.GetByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil || link.UserID != userID {
		if err != nil && !errors.Is(err, banklink.ErrNotFound) {
			respondError(w, h.log, err)
			return
		}
		http.Error(w, "Bank not found", http.StatusNotFound)
		return
	}

	if err := h.links.Delete(r.Context(), link.ID); err != nil {
		respondError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetAccount returns one linked account's live view plus its reconciled
// transaction feed.
func (h *BankHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	detail, err := h.reconcile.GetAccount(r.Context(), userID, chi.URLParam(r, "handle"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// HandleGetAllAccounts returns the aggregated portfolio across every linked
// account, with failed items reported alongside.
func (h *BankHandler) HandleGetAllAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	portfolio, err := h.reconcile.GetAllAccounts(r.Context(), userID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

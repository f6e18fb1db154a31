package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"horizon/internal/domain/transfer"
	"horizon/internal/shared/middleware"
)

type TransferHandler struct {
	transfers *transfer.Service
	log       *zap.Logger
}

func NewTransferHandler(transfers *transfer.Service, log *zap.Logger) *TransferHandler {
	return &TransferHandler{transfers: transfers, log: log}
}

type CreateTransferRequest struct {
	Name           string          `json:"name"`
	ReceiverUserID int64           `json:"receiverUserId"`
	SenderLinkID   int64           `json:"senderLinkId"`
	ReceiverLinkID int64           `json:"receiverLinkId"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Channel        string          `json:"channel"`
	Pending        bool            `json:"pending"`
	OccurredAt     *time.Time      `json:"occurredAt"`
}

// HandleCreateTransfer records an internally originated transfer between two
// linked accounts.
func (h *TransferHandler) HandleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := transfer.CreateParams{
		Name:           req.Name,
		SenderUserID:   userID,
		ReceiverUserID: req.ReceiverUserID,
		SenderLinkID:   req.SenderLinkID,
		ReceiverLinkID: req.ReceiverLinkID,
		Amount:         req.Amount,
		Category:       req.Category,
		Channel:        req.Channel,
		Pending:        req.Pending,
	}
	if req.OccurredAt != nil {
		params.OccurredAt = *req.OccurredAt
	}

	created, err := h.transfers.Create(r.Context(), params)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// HandleSettleTransfer clears the pending flag on a transfer the caller is a
// party to.
func (h *TransferHandler) HandleSettleTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transferID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid transfer id", http.StatusBadRequest)
		return
	}

	settled, err := h.transfers.Settle(r.Context(), userID, transferID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, settled)
}

type RailTransferRequest struct {
	SourceHandle      string          `json:"source_handle"`
	DestinationHandle string          `json:"destination_handle"`
	Amount            decimal.Decimal `json:"amount"`
}

type RailTransferResponse struct {
	TransferRef string `json:"transfer_ref"`
}

// HandleInitiateRailTransfer starts an ACH transfer between two funding
// sources. The Idempotency-Key header is mandatory: the call moves money and
// is never auto-retried.
func (h *TransferHandler) HandleInitiateRailTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		http.Error(w, "Idempotency-Key header is required", http.StatusBadRequest)
		return
	}

	var req RailTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ref, err := h.transfers.InitiateRailTransfer(r.Context(), userID,
		req.SourceHandle, req.DestinationHandle, req.Amount, idemKey)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, RailTransferResponse{TransferRef: ref})
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/persistence"
)

type walletService interface {
	Catalog() []application.ShopItem
	Balance(ctx context.Context, principal application.Principal) (int64, error)
	Ledger(ctx context.Context, principal application.Principal, limit int) ([]persistence.LedgerEntry, error)
	Purchase(ctx context.Context, principal application.Principal, itemCode string) (application.PurchaseResult, error)
	Owned(ctx context.Context, principal application.Principal) ([]string, error)
}

// WalletHandler serves balances, the ledger and the shop.
type WalletHandler struct {
	service   walletService
	responder responder
	logger    *slog.Logger
}

func NewWalletHandler(service walletService, logger *slog.Logger) *WalletHandler {
	base := defaultLogger(logger)
	return &WalletHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WalletHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	balance, err := h.service.Balance(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	owned, err := h.service.Owned(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, walletResponse{Balance: balance, Owned: owned})
}

func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			h.responder.handleServiceError(r.Context(), w, fieldError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.service.Ledger(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]ledgerEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newLedgerEntryDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, ledgerResponse{Entries: out})
}

func (h *WalletHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.Purchase(r.Context(), principal, strings.TrimSpace(req.Item))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "WalletHandler", "Purchase", "item", result.Item.Code).InfoContext(r.Context(), "item purchased")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, purchaseResponse{
		Item:    result.Item,
		Entry:   newLedgerEntryDTO(result.Entry),
		Balance: result.Balance,
	})
}

func (h *WalletHandler) ShopItems(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, shopResponse{Items: h.service.Catalog()})
}

type purchaseRequest struct {
	Item string `json:"item"`
}

type walletResponse struct {
	Balance int64    `json:"balance"`
	Owned   []string `json:"owned"`
}

type ledgerResponse struct {
	Entries []ledgerEntryDTO `json:"entries"`
}

type purchaseResponse struct {
	Item    application.ShopItem `json:"item"`
	Entry   ledgerEntryDTO       `json:"entry"`
	Balance int64                `json:"balance"`
}

type shopResponse struct {
	Items []application.ShopItem `json:"items"`
}

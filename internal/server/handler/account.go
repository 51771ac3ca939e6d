package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
)

// AccountHandler serves account balance endpoints.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logHandler(logger, "account"),
	}
}

// GetBalances returns every known asset balance for an account.
// GET /api/accounts/{id}/balances
func (h *AccountHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	account := pathParam(r, "id")

	balances, err := h.accounts.Balances(r.Context(), account)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account has no balances")
			return
		}
		h.logger.ErrorContext(r.Context(), "get balances failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get balances")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":  account,
		"balances": balances,
	})
}

// SetBalance records the available amount of one asset for an account.
// PUT /api/accounts/{id}/balances/{asset}
func (h *AccountHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	account := pathParam(r, "id")
	asset := pathParam(r, "asset")

	var body struct {
		Available decimal.Decimal `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Available.IsNegative() {
		writeError(w, http.StatusBadRequest, "available must not be negative")
		return
	}

	if err := h.accounts.SetBalance(r.Context(), account, asset, body.Available); err != nil {
		h.logger.ErrorContext(r.Context(), "set balance failed",
			slog.String("account", account),
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"asset":     asset,
		"available": body.Available,
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type TransactionHandler struct {
	txService services.TransactionService
	prices    services.PriceService
}

func NewTransactionHandler(txService services.TransactionService, prices services.PriceService) *TransactionHandler {
	return &TransactionHandler{
		txService: txService,
		prices:    prices,
	}
}

// HandleCreateTransaction records a buy or sell for the authenticated user
// and returns the transaction together with the recomputed position.
func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Ticker     string          `json:"ticker"`
		Direction  string          `json:"direction"`
		Quantity   decimal.Decimal `json:"quantity"`
		UnitPrice  decimal.Decimal `json:"unit_price"`
		ExecutedAt time.Time       `json:"executed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	stock, err := h.prices.EnsureStock(r.Context(), payload.Ticker)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	tx, position, err := h.txService.CreateTransaction(r.Context(), userID, stock.ID,
		models.Direction(payload.Direction), payload.Quantity, payload.UnitPrice, payload.ExecutedAt)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	tx.Ticker = stock.Ticker
	position.Ticker = stock.Ticker

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": tx,
		"position":    position,
	})
}

// HandleDeleteTransaction removes one ledger entry and returns the
// recomputed position for its (user, stock) pair.
func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	transactionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	position, err := h.txService.DeleteTransaction(r.Context(), userID, transactionID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"position": position,
	})
}

// HandleGetTransactions returns the user's full transaction history.
func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	transactions, err := h.txService.ListTransactions(userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.WriteJSON(w, http.StatusOK, transactions)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/username/stockfolio/backend/src/database"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type StockHandler struct {
	prices services.PriceService
}

func NewStockHandler(prices services.PriceService) *StockHandler {
	return &StockHandler{prices: prices}
}

// stockDetail bundles everything the detail page needs in one round trip.
type stockDetail struct {
	Stock        *models.Stock        `json:"stock"`
	Quote        *services.PriceQuote `json:"quote,omitempty"`
	Position     *models.Position     `json:"position,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
}

// HandleGetStock looks up a ticker, resolving and registering it on first
// sight, and returns its quote together with the caller's position and ledger
// for it. An unresolvable ticker is a 404; a known ticker whose quote cannot
// be refreshed still returns the stock row, just without a quote.
func (h *StockHandler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
	if ticker == "" {
		utils.SendJSONError(w, "ticker is required", http.StatusBadRequest)
		return
	}

	stock, err := h.prices.EnsureStock(r.Context(), ticker)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	detail := stockDetail{Stock: stock, Transactions: []models.Transaction{}}

	if quote, err := h.prices.GetPrice(r.Context(), ticker, ""); err == nil {
		detail.Quote = &quote
	} else if !errors.Is(err, models.ErrPriceUnavailable) {
		utils.SendDomainError(w, err)
		return
	}

	position, err := model.GetPosition(database.DB, userID, stock.ID)
	switch {
	case err == nil:
		detail.Position = position
	case errors.Is(err, models.ErrNotFound):
		// no holdings for this stock yet
	default:
		utils.SendDomainError(w, err)
		return
	}

	transactions, err := model.ListTransactionsForPosition(database.DB, userID, stock.ID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	if transactions != nil {
		detail.Transactions = transactions
	}

	utils.WriteJSON(w, http.StatusOK, detail)
}

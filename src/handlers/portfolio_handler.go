package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/username/stockfolio/backend/src/database"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
	txService        services.TransactionService
	cashService      services.CashService
}

func NewPortfolioHandler(portfolioService services.PortfolioService,
	txService services.TransactionService, cashService services.CashService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		txService:        txService,
		cashService:      cashService,
	}
}

// HandleGetPortfolio returns the cash, NAV and P&L summary for the
// authenticated user. Missing quotes degrade to a flagged gap, never a 5xx.
func (h *PortfolioHandler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	summary, err := h.portfolioService.GetSummary(r.Context(), user)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// historyEntry is one row of the merged activity feed: either a stock
// transaction or a cash transfer, newest first.
type historyEntry struct {
	Kind        string               `json:"kind"`
	OccurredAt  time.Time            `json:"occurred_at"`
	Transaction *models.Transaction  `json:"transaction,omitempty"`
	Transfer    *models.CashTransfer `json:"transfer,omitempty"`
}

// HandleGetHistory merges the user's transaction ledger and cash audit trail
// into a single reverse-chronological feed.
func (h *PortfolioHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
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
	transfers, err := h.cashService.ListTransfers(userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	entries := make([]historyEntry, 0, len(transactions)+len(transfers))
	for i := range transactions {
		entries = append(entries, historyEntry{
			Kind:        "transaction",
			OccurredAt:  transactions[i].ExecutedAt,
			Transaction: &transactions[i],
		})
	}
	for i := range transfers {
		entries = append(entries, historyEntry{
			Kind:       "transfer",
			OccurredAt: transfers[i].ExecutedAt,
			Transfer:   &transfers[i],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})

	utils.WriteJSON(w, http.StatusOK, entries)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type TransferHandler struct {
	cashService services.CashService
}

func NewTransferHandler(cashService services.CashService) *TransferHandler {
	return &TransferHandler{cashService: cashService}
}

// HandleCreateTransfer applies a deposit, withdrawal or absolute set to the
// authenticated user's cash balance.
func (h *TransferHandler) HandleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Method string          `json:"method"`
		Value  decimal.Decimal `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	transfer, err := h.cashService.ApplyTransfer(r.Context(), userID,
		models.TransferMethod(payload.Method), payload.Value)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, transfer)
}

// HandleGetTransfers returns the user's cash audit trail.
func (h *TransferHandler) HandleGetTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	transfers, err := h.cashService.ListTransfers(userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	if transfers == nil {
		transfers = []models.CashTransfer{}
	}
	utils.WriteJSON(w, http.StatusOK, transfers)
}

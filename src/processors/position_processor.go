package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// PositionResult is the derived state for one (user, stock) ledger.
type PositionResult struct {
	Quantity     decimal.Decimal
	AvgCostPrice decimal.Decimal
	RealizedPnl  decimal.Decimal
}

// ComputePosition derives quantity, average cost price and realized P&L from
// a (user, stock) ledger using first-in-first-out lot matching: the earlier a
// lot was bought, the sooner it is deemed sold, regardless of which lot a
// given sell nominally reduced. The ledger itself never stores lot-to-sale
// links; they are derived structurally on every recompute, which makes the
// computation idempotent.
//
// priorRealized is the realized P&L currently stored on the position. It is
// carried through unchanged when the ledger contains no sells: a position
// that was fully closed and then re-bought keeps accumulating on the same
// realized figure rather than resetting.
//
// An oversold ledger (total sells exceeding total buys) is rejected with an
// error; callers validate sells before appending so this is a consistency
// check, not a code path.
func ComputePosition(ledger []models.Transaction, priorRealized decimal.Decimal) (PositionResult, error) {
	buys := make([]models.Transaction, 0, len(ledger))
	totalBuyQty := decimal.Zero
	totalSellQty := decimal.Zero
	costOfAllBought := decimal.Zero
	totalRevenue := decimal.Zero

	for _, t := range ledger {
		switch t.Direction {
		case models.DirectionBuy:
			buys = append(buys, t)
			totalBuyQty = totalBuyQty.Add(t.Quantity)
			costOfAllBought = costOfAllBought.Add(t.UnitPrice.Mul(t.Quantity))
		case models.DirectionSell:
			totalSellQty = totalSellQty.Add(t.Quantity)
			totalRevenue = totalRevenue.Add(t.UnitPrice.Mul(t.Quantity))
		default:
			return PositionResult{}, fmt.Errorf("unknown transaction direction %q on transaction %d", t.Direction, t.ID)
		}
	}

	if totalSellQty.GreaterThan(totalBuyQty) {
		return PositionResult{}, fmt.Errorf(
			"oversold ledger: total sell quantity %s exceeds total buy quantity %s",
			totalSellQty.String(), totalBuyQty.String())
	}

	// The ledger arrives ordered by timestamp; sorting again keeps the lot
	// walk correct even for callers that assembled it by hand.
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].ExecutedAt.Before(buys[j].ExecutedAt)
	})

	// Walk buy lots oldest-first, consuming the total sold quantity to find
	// the cost basis of everything already sold.
	costOfSoldLots := decimal.Zero
	remainingSellQty := totalSellQty
	for _, lot := range buys {
		if !remainingSellQty.IsPositive() {
			break
		}
		matched := decimal.Min(remainingSellQty, lot.Quantity)
		costOfSoldLots = costOfSoldLots.Add(matched.Mul(lot.UnitPrice))
		remainingSellQty = remainingSellQty.Sub(matched)
	}

	result := PositionResult{RealizedPnl: priorRealized}

	currentQuantity := totalBuyQty.Sub(totalSellQty)
	if currentQuantity.IsPositive() {
		result.Quantity = currentQuantity
		result.AvgCostPrice = costOfAllBought.Sub(costOfSoldLots).Div(currentQuantity)
	} else {
		// Fully closed position. Average cost is zeroed explicitly; the
		// division above would fault on a zero quantity.
		result.Quantity = decimal.Zero
		result.AvgCostPrice = decimal.Zero
	}

	// Realized P&L is only rewritten when a sale exists in this ledger.
	if totalSellQty.IsPositive() {
		result.RealizedPnl = totalRevenue.Sub(costOfSoldLots)
	}

	return result, nil
}

// TotalQuantities sums buy and sell quantities over a ledger. Used to reject
// a sell (or a buy deletion) that would leave the ledger oversold, before
// anything is written.
func TotalQuantities(ledger []models.Transaction) (totalBuy, totalSell decimal.Decimal) {
	totalBuy, totalSell = decimal.Zero, decimal.Zero
	for _, t := range ledger {
		if t.Direction == models.DirectionBuy {
			totalBuy = totalBuy.Add(t.Quantity)
		} else {
			totalSell = totalSell.Add(t.Quantity)
		}
	}
	return totalBuy, totalSell
}

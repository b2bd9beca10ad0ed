package settlement

import (
	"github.com/lijunhao/projfin/internal/models"
	"github.com/lijunhao/projfin/pkg/money"
)

// Input carries the monetary inputs to one settlement computation.
type Input struct {
	Revenue     float64
	ExpenseCost float64
	TaxFee      float64
	LaborCost   float64
	Ranges      []models.CommissionRange
}

// Outcome is the pure result of one settlement computation.
type Outcome struct {
	Revenue          float64 `json:"revenue"`
	ExpenseCost      float64 `json:"expenseCost"`
	TaxFee           float64 `json:"taxFee"`
	LaborCost        float64 `json:"laborCost"`
	Profit           float64 `json:"profit"`
	ProfitRate       float64 `json:"profitRate"`
	CommissionRate   float64 `json:"commissionRate"`
	CommissionAmount float64 `json:"commissionAmount"`
}

// Compute derives profit, profit rate and tiered commission. Every
// monetary input is rounded to 2 decimals on entry so repeated
// recomputation of the same period is exactly reproducible. Commission is
// never paid on a loss: the base amount floors at zero.
func Compute(in Input) Outcome {
	revenue := money.Round2(in.Revenue)
	expense := money.Round2(in.ExpenseCost)
	taxFee := money.Round2(in.TaxFee)
	labor := money.Round2(in.LaborCost)

	profit := money.Round2(revenue - expense - taxFee - labor)
	profitRate := money.Ratio(profit, revenue)
	rate := RateFor(in.Ranges, profitRate)

	base := profit
	if base < 0 {
		base = 0
	}

	return Outcome{
		Revenue:          revenue,
		ExpenseCost:      expense,
		TaxFee:           taxFee,
		LaborCost:        labor,
		Profit:           profit,
		ProfitRate:       profitRate,
		CommissionRate:   rate,
		CommissionAmount: money.Round2(base * rate),
	}
}

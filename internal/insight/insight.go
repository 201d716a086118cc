// Package insight derives the read-only financial summary and the insight
// feed shown next to the itinerary.
package insight

import (
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"itera/internal/itinerary"
)

// DefaultBudgetMax applies when the traveler profile carries no budget.
const DefaultBudgetMax = 2500

// Summary is the budget aggregation over an itinerary and its insights.
type Summary struct {
	TotalSpent      int  `json:"totalSpent"`
	TransitCost     int  `json:"transitCost"`
	BudgetMax       int  `json:"budgetMax"`
	RemainingBudget int  `json:"remainingBudget"`
	OverBudget      bool `json:"overBudget"`

	TransitLabel string `json:"transitLabel"`
	BudgetLabel  string `json:"budgetLabel"`
}

var printer = message.NewPrinter(language.English)

// Summarize computes the budget summary. It does not depend on stop or
// insight order.
func Summarize(it itinerary.Itinerary, insights []itinerary.Insight, budgetMax int) Summary {
	if budgetMax <= 0 {
		budgetMax = DefaultBudgetMax
	}
	spent := lo.SumBy(it, func(s itinerary.Stop) int { return s.Cost() })
	transit := TransitCost(insights)
	remaining := budgetMax - transit

	return Summary{
		TotalSpent:      spent,
		TransitCost:     transit,
		BudgetMax:       budgetMax,
		RemainingBudget: remaining,
		OverBudget:      spent > remaining,
		TransitLabel:    Money(transit),
		BudgetLabel:     Money(spent) + " / " + Money(remaining),
	}
}

// TransitCost is the numeric value of the Transit_Cost insight, or 0.
func TransitCost(insights []itinerary.Insight) int {
	in, ok := lo.Find(insights, func(i itinerary.Insight) bool {
		return i.Category == itinerary.TransitCostCategory
	})
	if !ok {
		return 0
	}
	return itinerary.ParseAmount(string(in.Value))
}

// Feed returns the insights shown to the traveler, without the reserved
// transit cost entry.
func Feed(insights []itinerary.Insight) []itinerary.Insight {
	return lo.Filter(insights, func(i itinerary.Insight, _ int) bool {
		return i.Category != itinerary.TransitCostCategory
	})
}

// Money formats a whole dollar amount with thousands separators.
func Money(amount int) string {
	if amount < 0 {
		return printer.Sprintf("-$%d", -amount)
	}
	return printer.Sprintf("$%d", amount)
}

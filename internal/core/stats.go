package core

import "time"

// TopCategoryNone is reported when the owner has no expense records.
const TopCategoryNone = "N/A"

type (
	// CategoryTotal is one per-category aggregate, in first-seen order.
	CategoryTotal struct {
		Name  string `json:"name"`
		Value Money  `json:"value"`
	}

	// TrendPoint is one calendar-month bucket of the current year.
	TrendPoint struct {
		Month  string `json:"month"`
		Amount Money  `json:"amount"`
	}

	// StatsSummary is the aggregated view-model returned by the quick-stats
	// endpoint. It is derived on every request and never persisted.
	StatsSummary struct {
		TotalExpenses   Money           `json:"totalExpenses"`
		MonthlyExpenses Money           `json:"monthlyExpenses"`
		TopCategory     string          `json:"topCategory"`
		CategoryData    []CategoryTotal `json:"categoryData"`
		TrendData       []TrendPoint    `json:"trendData"`
	}
)

// ComputeStats aggregates all of one owner's expense records into a
// StatsSummary. It is a pure function of (records, now): no I/O, no
// mutation of its input, and the reference instant is injected so callers
// control what "current month" means.
//
// Records must already be scoped to a single owner; no ownership check
// happens here. Record order is preserved in CategoryData (first-seen
// category order), so callers must supply a deterministic order.
//
// Calendar policy: month and year are extracted in UTC. A record with a
// zero date cannot be placed in a month, so it contributes to the lifetime
// total and its category total but never to MonthlyExpenses or TrendData.
//
// With zero records the summary is the fixed empty shape: totals of zero,
// TopCategory "N/A", and empty CategoryData and TrendData slices. Note the
// asymmetry: TrendData has twelve zeroed buckets whenever at least one
// record exists, but is empty for zero records. Consumers depend on it.
func ComputeStats(records []Expense, now time.Time) StatsSummary {
	summary := StatsSummary{
		TopCategory:  TopCategoryNone,
		CategoryData: []CategoryTotal{},
		TrendData:    []TrendPoint{},
	}
	if len(records) == 0 {
		return summary
	}

	now = now.UTC()
	var trend [12]int64
	seen := make(map[string]int, 8)

	for _, r := range records {
		summary.TotalExpenses.Cents += r.Amount.Cents

		i, ok := seen[r.Category]
		if !ok {
			i = len(summary.CategoryData)
			seen[r.Category] = i
			summary.CategoryData = append(summary.CategoryData, CategoryTotal{Name: r.Category})
		}
		summary.CategoryData[i].Value.Cents += r.Amount.Cents

		if r.Date.IsZero() {
			continue
		}
		d := r.Date.UTC()
		if d.Year() != now.Year() {
			continue
		}
		trend[int(d.Month())-1] += r.Amount.Cents
		if d.Month() == now.Month() {
			summary.MonthlyExpenses.Cents += r.Amount.Cents
		}
	}

	// Strictly-greater comparison makes the first-seen category win exact ties.
	top := summary.CategoryData[0]
	for _, c := range summary.CategoryData[1:] {
		if c.Value.Cents > top.Value.Cents {
			top = c
		}
	}
	summary.TopCategory = top.Name

	for m := time.January; m <= time.December; m++ {
		summary.TrendData = append(summary.TrendData, TrendPoint{
			Month:  m.String()[:3],
			Amount: Money{Cents: trend[m-1]},
		})
	}

	return summary
}

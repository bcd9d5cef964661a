package core

import (
	"encoding/json"
	"testing"
	"time"
)

func exp(amountCents int64, category string, date Date) Expense {
	return Expense{
		Title:    "t",
		Amount:   Money{Cents: amountCents},
		Category: category,
		Date:     date,
	}
}

func TestComputeStatsEmptyInput(t *testing.T) {
	nows := []time.Time{
		time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
		{},
	}
	for i, now := range nows {
		s := ComputeStats(nil, now)
		if s.TotalExpenses.Cents != 0 || s.MonthlyExpenses.Cents != 0 {
			t.Fatalf("case %d: expected zero totals, got %+v", i, s)
		}
		if s.TopCategory != TopCategoryNone {
			t.Fatalf("case %d: expected %q, got %q", i, TopCategoryNone, s.TopCategory)
		}
		if len(s.CategoryData) != 0 || len(s.TrendData) != 0 {
			t.Fatalf("case %d: expected empty slices, got %+v", i, s)
		}
		// The empty shape must serialize to [] rather than null
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("case %d: marshal: %v", i, err)
		}
		want := `{"totalExpenses":0.00,"monthlyExpenses":0.00,"topCategory":"N/A","categoryData":[],"trendData":[]}`
		if string(b) != want {
			t.Fatalf("case %d: got %s, want %s", i, b, want)
		}
	}
}

func TestComputeStatsExampleScenario(t *testing.T) {
	records := []Expense{
		exp(5000, "Food", NewDate(2024, 3, 1)),
		exp(3000, "Food", NewDate(2024, 3, 15)),
		exp(2000, "Transit", NewDate(2024, 1, 10)),
	}
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	s := ComputeStats(records, now)

	if s.TotalExpenses.Cents != 10000 {
		t.Fatalf("total: got %d, want 10000", s.TotalExpenses.Cents)
	}
	if s.MonthlyExpenses.Cents != 8000 {
		t.Fatalf("monthly: got %d, want 8000", s.MonthlyExpenses.Cents)
	}
	if s.TopCategory != "Food" {
		t.Fatalf("top category: got %q, want Food", s.TopCategory)
	}
	if len(s.CategoryData) != 2 {
		t.Fatalf("category data: got %d entries, want 2", len(s.CategoryData))
	}
	if s.CategoryData[0].Name != "Food" || s.CategoryData[0].Value.Cents != 8000 {
		t.Fatalf("category[0]: got %+v", s.CategoryData[0])
	}
	if s.CategoryData[1].Name != "Transit" || s.CategoryData[1].Value.Cents != 2000 {
		t.Fatalf("category[1]: got %+v", s.CategoryData[1])
	}
	if len(s.TrendData) != 12 {
		t.Fatalf("trend data: got %d entries, want 12", len(s.TrendData))
	}
	for i, p := range s.TrendData {
		var want int64
		switch i {
		case 0:
			want = 2000 // Jan
		case 2:
			want = 8000 // Mar
		}
		if p.Amount.Cents != want {
			t.Fatalf("trend[%d] (%s): got %d, want %d", i, p.Month, p.Amount.Cents, want)
		}
	}
	if s.TrendData[0].Month != "Jan" || s.TrendData[11].Month != "Dec" {
		t.Fatalf("trend labels: got %q..%q", s.TrendData[0].Month, s.TrendData[11].Month)
	}
}

func TestComputeStatsOtherYearRecords(t *testing.T) {
	records := []Expense{
		exp(1500, "Rent", NewDate(2022, 6, 1)),
		exp(2500, "Rent", NewDate(2023, 6, 1)),
	}
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	s := ComputeStats(records, now)

	if s.TotalExpenses.Cents != 4000 {
		t.Fatalf("total: got %d, want 4000", s.TotalExpenses.Cents)
	}
	if s.MonthlyExpenses.Cents != 0 {
		t.Fatalf("monthly: got %d, want 0", s.MonthlyExpenses.Cents)
	}
	if s.CategoryData[0].Value.Cents != 4000 {
		t.Fatalf("category: got %d, want 4000", s.CategoryData[0].Value.Cents)
	}
	if len(s.TrendData) != 12 {
		t.Fatalf("trend data: got %d entries, want 12", len(s.TrendData))
	}
	for i, p := range s.TrendData {
		if p.Amount.Cents != 0 {
			t.Fatalf("trend[%d]: got %d, want 0", i, p.Amount.Cents)
		}
	}
}

func TestComputeStatsPartitionLaws(t *testing.T) {
	records := []Expense{
		exp(100, "a", NewDate(2024, 1, 2)),
		exp(250, "b", NewDate(2024, 2, 3)),
		exp(75, "a", NewDate(2024, 2, 28)),
		exp(4200, "c", NewDate(2023, 11, 5)),
		exp(0, "b", NewDate(2024, 12, 31)),
	}
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	s := ComputeStats(records, now)

	var sum int64
	for _, r := range records {
		sum += r.Amount.Cents
	}
	if s.TotalExpenses.Cents != sum {
		t.Fatalf("total additivity: got %d, want %d", s.TotalExpenses.Cents, sum)
	}

	var catSum int64
	for _, c := range s.CategoryData {
		catSum += c.Value.Cents
	}
	if catSum != s.TotalExpenses.Cents {
		t.Fatalf("category partition: got %d, want %d", catSum, s.TotalExpenses.Cents)
	}

	var trendSum, sameYear int64
	for _, p := range s.TrendData {
		trendSum += p.Amount.Cents
	}
	for _, r := range records {
		if r.Date.UTC().Year() == now.Year() {
			sameYear += r.Amount.Cents
		}
	}
	if trendSum != sameYear {
		t.Fatalf("trend partition: got %d, want %d", trendSum, sameYear)
	}

	// Monthly total must agree with the current month's trend bucket
	if s.MonthlyExpenses.Cents != s.TrendData[int(now.Month())-1].Amount.Cents {
		t.Fatalf("monthly consistency: %d vs %d",
			s.MonthlyExpenses.Cents, s.TrendData[int(now.Month())-1].Amount.Cents)
	}
}

func TestComputeStatsTopCategoryTieBreak(t *testing.T) {
	// Exact tie: the category seen first wins
	records := []Expense{
		exp(500, "Transit", NewDate(2024, 1, 1)),
		exp(500, "Food", NewDate(2024, 1, 2)),
	}
	s := ComputeStats(records, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if s.TopCategory != "Transit" {
		t.Fatalf("tie-break: got %q, want Transit", s.TopCategory)
	}

	// Later category overtakes with a strictly larger total
	records = append(records, exp(1, "Food", NewDate(2024, 1, 4)))
	s = ComputeStats(records, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if s.TopCategory != "Food" {
		t.Fatalf("overtake: got %q, want Food", s.TopCategory)
	}
}

func TestComputeStatsDeterminism(t *testing.T) {
	records := []Expense{
		exp(999, "x", NewDate(2024, 5, 5)),
		exp(1, "y", NewDate(2024, 5, 6)),
		exp(999, "y", NewDate(2023, 5, 6)),
	}
	now := time.Date(2024, 5, 7, 8, 9, 10, 0, time.UTC)

	a, err := json.Marshal(ComputeStats(records, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(ComputeStats(records, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("non-deterministic output:\n%s\n%s", a, b)
	}
}

func TestComputeStatsTimezoneNormalization(t *testing.T) {
	// 2024-03-31 23:30 UTC-5 is 2024-04-01 04:30 UTC: the record belongs
	// to April under the UTC policy.
	loc := time.FixedZone("UTC-5", -5*3600)
	records := []Expense{{
		Title:    "t",
		Amount:   Money{Cents: 100},
		Category: "c",
		Date:     Date{Time: time.Date(2024, 3, 31, 23, 30, 0, 0, loc)},
	}}
	now := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

	s := ComputeStats(records, now)
	if s.TrendData[3].Amount.Cents != 100 { // Apr
		t.Fatalf("expected amount in April bucket, got %+v", s.TrendData)
	}
	if s.MonthlyExpenses.Cents != 100 {
		t.Fatalf("monthly: got %d, want 100", s.MonthlyExpenses.Cents)
	}
}

func TestComputeStatsZeroDateSkipsBuckets(t *testing.T) {
	records := []Expense{
		exp(700, "misc", Date{}),
		exp(300, "misc", NewDate(2024, 1, 1)),
	}
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	s := ComputeStats(records, now)
	if s.TotalExpenses.Cents != 1000 {
		t.Fatalf("total: got %d, want 1000", s.TotalExpenses.Cents)
	}
	if s.CategoryData[0].Value.Cents != 1000 {
		t.Fatalf("category: got %d, want 1000", s.CategoryData[0].Value.Cents)
	}
	if s.MonthlyExpenses.Cents != 300 {
		t.Fatalf("monthly: got %d, want 300", s.MonthlyExpenses.Cents)
	}
	if s.TrendData[0].Amount.Cents != 300 {
		t.Fatalf("trend[Jan]: got %d, want 300", s.TrendData[0].Amount.Cents)
	}
}

package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendMonths is the length of the dashboard's monthly lookback window.
const TrendMonths = 6

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Amount     Money
}

// MonthAmount is the expense total for one calendar month.
type MonthAmount struct {
	Year   int
	Month  int // 1-12
	Label  string
	Amount Money
}

// Dashboard is the summary shown on the dashboard page.
type Dashboard struct {
	TotalIncome     Money
	TotalExpense    Money
	NetSaving       Money
	CategoryLabels  []string
	CategoryValues  []Money
	MonthLabels     []string
	MonthValues     []Money
	Goal            *SavingsGoal
	ProgressPercent decimal.Decimal
}

// DashboardInput holds one user's records plus the shared categories.
type DashboardInput struct {
	Categories []Category
	Expenses   []Expense
	Incomes    []Income
	Goals      []SavingsGoal
	Now        time.Time
}

func TotalExpense(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func TotalIncome(incomes []Income) Money {
	var total Money
	for _, i := range incomes {
		total = total.Add(i.Amount)
	}
	return total
}

func NetSaving(totalIncome, totalExpense Money) Money {
	return totalIncome.Sub(totalExpense)
}

// CategoryBreakdown returns one entry per category, in the given order,
// with the sum of the expenses tagged with it. Uncategorised expenses are
// not counted anywhere.
func CategoryBreakdown(categories []Category, expenses []Expense) []CategoryAmount {
	sums := make(map[int64]Money, len(categories))
	for _, e := range expenses {
		if e.CategoryID == nil {
			continue
		}
		sums[*e.CategoryID] = sums[*e.CategoryID].Add(e.Amount)
	}
	out := make([]CategoryAmount, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryAmount{CategoryID: c.ID, Name: c.Name, Amount: sums[c.ID]})
	}
	return out
}

// MonthlyTrend buckets expenses into the TrendMonths calendar months ending
// with now's month, oldest first. Day of month is ignored.
func MonthlyTrend(expenses []Expense, now time.Time) []MonthAmount {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first = first.AddDate(0, -(TrendMonths - 1), 0)

	out := make([]MonthAmount, TrendMonths)
	index := make(map[int]int, TrendMonths)
	for i := range out {
		m := first.AddDate(0, i, 0)
		out[i] = MonthAmount{Year: m.Year(), Month: int(m.Month()), Label: m.Format("Jan 2006")}
		index[monthKey(m.Year(), int(m.Month()))] = i
	}
	for _, e := range expenses {
		if i, ok := index[monthKey(e.Date.Year(), e.Date.Month())]; ok {
			out[i].Amount = out[i].Amount.Add(e.Amount)
		}
	}
	return out
}

func monthKey(year, month int) int {
	return year*12 + month
}

var hundred = decimal.NewFromInt(100)

// ProgressPercent is ((income - expense) + starting balance) / target * 100,
// clamped to [0, 100]. A target of zero or less yields 0.
func ProgressPercent(goal SavingsGoal, totalIncome, totalExpense Money) decimal.Decimal {
	if goal.TargetAmount.Cents <= 0 {
		return decimal.Zero
	}
	current := NetSaving(totalIncome, totalExpense).Add(goal.StartingBalance)
	pct := current.Decimal().Div(goal.TargetAmount.Decimal()).Mul(hundred)
	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	}
	return pct
}

// SelectGoal picks the goal with the latest deadline. Goals without a
// deadline only count when no goal has one; ties go to the lowest id.
func SelectGoal(goals []SavingsGoal) *SavingsGoal {
	var best *SavingsGoal
	for i := range goals {
		g := &goals[i]
		if best == nil || goalBefore(best, g) {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	chosen := *best
	return &chosen
}

// goalBefore reports whether candidate should replace current.
func goalBefore(current, candidate *SavingsGoal) bool {
	switch {
	case current.Deadline == nil && candidate.Deadline != nil:
		return true
	case current.Deadline != nil && candidate.Deadline == nil:
		return false
	case current.Deadline != nil && candidate.Deadline != nil:
		if !candidate.Deadline.Equal(current.Deadline.Time) {
			return candidate.Deadline.After(current.Deadline.Time)
		}
	}
	return candidate.ID < current.ID
}

// BuildDashboard runs every aggregation over one user's records.
func BuildDashboard(in DashboardInput) Dashboard {
	d := Dashboard{
		TotalIncome:  TotalIncome(in.Incomes),
		TotalExpense: TotalExpense(in.Expenses),
	}
	d.NetSaving = NetSaving(d.TotalIncome, d.TotalExpense)

	for _, c := range CategoryBreakdown(in.Categories, in.Expenses) {
		d.CategoryLabels = append(d.CategoryLabels, c.Name)
		d.CategoryValues = append(d.CategoryValues, c.Amount)
	}
	for _, m := range MonthlyTrend(in.Expenses, in.Now) {
		d.MonthLabels = append(d.MonthLabels, m.Label)
		d.MonthValues = append(d.MonthValues, m.Amount)
	}

	d.ProgressPercent = decimal.Zero
	if g := SelectGoal(in.Goals); g != nil {
		d.Goal = g
		d.ProgressPercent = ProgressPercent(*g, d.TotalIncome, d.TotalExpense)
	}
	return d
}

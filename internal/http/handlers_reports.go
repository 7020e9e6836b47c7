package http

import (
	"net/http"
	"strings"

	"lana/internal/core"
	"lana/internal/services"
)

type categoryAmountResponse struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Total      string `json:"total"`
}

type monthOverviewResponse struct {
	Period       string                   `json:"period"`
	Income       []categoryAmountResponse `json:"income"`
	Expenses     []categoryAmountResponse `json:"expenses"`
	TotalIncome  string                   `json:"total_income"`
	TotalExpense string                   `json:"total_expense"`
	Balance      string                   `json:"balance"`
}

type monthTotalsResponse struct {
	Month   int    `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

type yearHistoryResponse struct {
	Year         int                   `json:"year"`
	Months       []monthTotalsResponse `json:"months"`
	TotalIncome  string                `json:"total_income"`
	TotalExpense string                `json:"total_expense"`
	Balance      string                `json:"balance"`
}

type categoryShareResponse struct {
	categoryAmountResponse
	Percent string `json:"percent"`
}

func toCategoryAmounts(items []core.CategoryAmount) []categoryAmountResponse {
	out := make([]categoryAmountResponse, 0, len(items))
	for _, c := range items {
		out = append(out, categoryAmountResponse{CategoryID: c.CategoryID, Name: c.Name, Total: c.Amount.String()})
	}
	return out
}

// reportPeriod reads year and month, defaulting each to the current one.
func (s *Server) reportPeriod(r *http.Request) (core.Period, error) {
	current := core.PeriodOf(s.today())
	year, err := queryInt(r, "year", current.Year)
	if err != nil {
		return core.Period{}, err
	}
	month, err := queryInt(r, "month", current.Month)
	if err != nil {
		return core.Period{}, err
	}
	return core.Period{Year: year, Month: month}, nil
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	p, err := s.reportPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Reports.MonthOverview(r.Context(), owner(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(monthOverviewResponse{
		Period:       o.Period.String(),
		Income:       toCategoryAmounts(o.Income),
		Expenses:     toCategoryAmounts(o.Expenses),
		TotalIncome:  o.TotalIncome.String(),
		TotalExpense: o.TotalExpense.String(),
		Balance:      o.Balance().String(),
	}).Write(w)
}

func (s *Server) handleHistoryReport(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", s.today().Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.deps.Reports.YearHistory(r.Context(), owner(r), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	months := make([]monthTotalsResponse, 0, len(h.Months))
	for _, m := range h.Months {
		months = append(months, monthTotalsResponse{
			Month:   m.Month,
			Income:  m.Income.String(),
			Expense: m.Expense.String(),
			Balance: m.Balance().String(),
		})
	}
	NewJSONResponse().Body(yearHistoryResponse{
		Year:         h.Year,
		Months:       months,
		TotalIncome:  h.TotalIncome.String(),
		TotalExpense: h.TotalExpense.String(),
		Balance:      h.Balance().String(),
	}).Write(w)
}

// handleTopCategories ranks categories over a year, or one month of it when
// month is given. kind defaults to expense.
func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", s.today().Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultTopCategories)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind := core.CategoryKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = core.Expense
	}

	shares, err := s.deps.Reports.TopCategories(r.Context(), owner(r), kind, year, month, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryShareResponse, 0, len(shares))
	for _, c := range shares {
		out = append(out, categoryShareResponse{
			categoryAmountResponse: categoryAmountResponse{CategoryID: c.CategoryID, Name: c.Name, Total: c.Amount.String()},
			Percent:                c.Percent.StringFixed(2),
		})
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	p, err := s.reportPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	statuses, err := s.deps.Reports.Budgets(r.Context(), owner(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toBudgetStatusResponse(st))
	}
	NewJSONResponse().Body(out).Write(w)
}

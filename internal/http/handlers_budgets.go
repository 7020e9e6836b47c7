package http

import (
	"net/http"

	"lana/internal/core"
)

type budgetRequest struct {
	CategoryID int64  `json:"category_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Limit      Amount `json:"limit"`
	Alert80    *bool  `json:"alert_80"`
	Alert100   *bool  `json:"alert_100"`
}

type budgetUpdateRequest struct {
	Limit    *Amount `json:"limit"`
	Alert80  *bool   `json:"alert_80"`
	Alert100 *bool   `json:"alert_100"`
}

type budgetResponse struct {
	ID           int64  `json:"id"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	Period       string `json:"period"`
	Limit        string `json:"limit"`
	Alert80      bool   `json:"alert_80"`
	Alert100     bool   `json:"alert_100"`
}

type budgetStatusResponse struct {
	budgetResponse
	Spent       string `json:"spent"`
	Remaining   string `json:"remaining"`
	Utilization string `json:"utilization"`
	Tier        string `json:"tier,omitempty"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:           b.ID,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		Period:       b.Period.String(),
		Limit:        b.Limit.String(),
		Alert80:      b.Alert80,
		Alert100:     b.Alert100,
	}
}

func toBudgetStatusResponse(st core.BudgetStatus) budgetStatusResponse {
	return budgetStatusResponse{
		budgetResponse: toBudgetResponse(st.Budget),
		Spent:          st.Spent.String(),
		Remaining:      st.Remaining.String(),
		Utilization:    st.Utilization.StringFixed(4),
		Tier:           string(st.Tier()),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := req.Limit.Positive()
	if err != nil {
		writeError(w, r, err)
		return
	}
	period := core.Period{Year: req.Year, Month: req.Month}
	if req.Year == 0 && req.Month == 0 {
		period = core.PeriodOf(s.today())
	}

	b, err := s.deps.Budgets.Create(r.Context(), core.Budget{
		OwnerID:    owner(r),
		CategoryID: req.CategoryID,
		Period:     period,
		Limit:      limit,
		Alert80:    boolOr(req.Alert80, true),
		Alert100:   boolOr(req.Alert100, true),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toBudgetResponse(b)).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.deps.Budgets.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toBudgetResponse(b)).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u := core.BudgetUpdate{Alert80: req.Alert80, Alert100: req.Alert100}
	if req.Limit != nil {
		limit, err := req.Limit.Positive()
		if err != nil {
			writeError(w, r, err)
			return
		}
		u.Limit = &limit
	}

	b, err := s.deps.Budgets.Update(r.Context(), owner(r), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toBudgetResponse(b)).Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Budgets.Status(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toBudgetStatusResponse(st)).Write(w)
}

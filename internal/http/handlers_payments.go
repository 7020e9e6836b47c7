package http

import (
	"fmt"
	"net/http"
	"strings"

	"lana/internal/core"
	"lana/internal/services"
)

type paymentRequest struct {
	AccountID   int64          `json:"account_id"`
	CategoryID  int64          `json:"category_id"`
	Description string         `json:"description"`
	Amount      Amount         `json:"amount"`
	Frequency   core.Frequency `json:"frequency"`
	NextDue     string         `json:"next_due"`
	LeadDays    int            `json:"lead_days"`
}

type paymentUpdateRequest struct {
	Description *string         `json:"description"`
	Amount      *Amount         `json:"amount"`
	Frequency   *core.Frequency `json:"frequency"`
	NextDue     *string         `json:"next_due"`
	Active      *bool           `json:"active"`
	LeadDays    *int            `json:"lead_days"`
}

type paymentResponse struct {
	ID          int64          `json:"id"`
	AccountID   int64          `json:"account_id"`
	CategoryID  int64          `json:"category_id"`
	Description string         `json:"description"`
	Amount      string         `json:"amount"`
	Frequency   core.Frequency `json:"frequency"`
	NextDue     string         `json:"next_due"`
	Active      bool           `json:"active"`
	LeadDays    int            `json:"lead_days"`
}

type processRequest struct {
	Date string `json:"date"`
}

type outcomeResponse struct {
	PaymentID     int64  `json:"payment_id"`
	TransactionID int64  `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	NextDue       string `json:"next_due,omitempty"`
	Deactivated   bool   `json:"deactivated"`
	Error         string `json:"error,omitempty"`
}

type processResponse struct {
	Date      string            `json:"date"`
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

func toPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		Description: p.Description,
		Amount:      p.Amount.String(),
		Frequency:   p.Frequency,
		NextDue:     p.NextDue.String(),
		Active:      p.Active,
		LeadDays:    p.LeadDays,
	}
}

func toPaymentResponses(list []core.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := req.Amount.Positive()
	if err != nil {
		writeError(w, r, err)
		return
	}
	due, err := core.ParseDate(req.NextDue)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.deps.Payments.Create(r.Context(), core.Payment{
		OwnerID:     owner(r),
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Frequency:   core.Frequency(strings.ToLower(string(req.Frequency))),
		NextDue:     due,
		LeadDays:    req.LeadDays,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toPaymentResponse(p)).Write(w)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPaymentResponse(p)).Write(w)
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u := core.PaymentUpdate{Frequency: req.Frequency, Active: req.Active, LeadDays: req.LeadDays}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		u.Description = &d
	}
	if req.Amount != nil {
		amount, err := req.Amount.Positive()
		if err != nil {
			writeError(w, r, err)
			return
		}
		u.Amount = &amount
	}
	if req.NextDue != nil {
		due, err := core.ParseDate(*req.NextDue)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u.NextDue = &due
	}

	p, err := s.deps.Payments.Update(r.Context(), owner(r), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPaymentResponse(p)).Write(w)
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Payments.Cancel(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleUpcomingPayments(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", services.DefaultUpcomingDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.deps.Payments.Upcoming(r.Context(), owner(r), s.today(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPaymentResponses(list)).Write(w)
}

// handleProcessPayments runs the recurring processor on demand. The body is
// optional; without a date the batch runs for today. Past dates replay a
// missed run; future dates are rejected.
func (s *Server) handleProcessPayments(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	today := s.today()
	date, err := parseDateOr(req.Date, today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date.After(today) {
		writeError(w, r, fmt.Errorf("%w: processing date %s is after today (%s)", core.ErrInvalidDate, date, today))
		return
	}

	outcomes, err := s.deps.Processor.ProcessDuePayments(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := processResponse{Date: date.String(), Outcomes: make([]outcomeResponse, 0, len(outcomes))}
	for _, o := range outcomes {
		out := outcomeResponse{
			PaymentID:     o.PaymentID,
			TransactionID: o.TransactionID,
			Status:        string(o.Status),
			Deactivated:   o.Deactivated,
		}
		if !o.NextDue.IsZero() {
			out.NextDue = o.NextDue.String()
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		switch o.Status {
		case services.StatusProcessed:
			resp.Processed++
		case services.StatusSkipped:
			resp.Skipped++
		default:
			resp.Failed++
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	NewJSONResponse().Body(resp).Write(w)
}

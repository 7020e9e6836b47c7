package http

import (
	"net/http"

	"lana/internal/core"
)

type categoryRequest struct {
	Name string            `json:"name"`
	Kind core.CategoryKind `json:"kind"`
}

type categoryResponse struct {
	ID   int64             `json:"id"`
	Name string            `json:"name"`
	Kind core.CategoryKind `json:"kind"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind}
}

type accountRequest struct {
	Name           string           `json:"name"`
	Kind           core.AccountKind `json:"kind"`
	OpeningBalance Amount           `json:"opening_balance"`
}

type accountResponse struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Kind           core.AccountKind `json:"kind"`
	OpeningBalance string           `json:"opening_balance"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Kind: a.Kind, OpeningBalance: a.OpeningBalance.String()}
}

type transactionRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id"`
	Amount      Amount `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCategoryResponse(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.deps.Catalog.CreateCategory(r.Context(), core.Category{
		Name: sanitizeInput(req.Name),
		Kind: req.Kind,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toCategoryResponse(c)).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var opening core.Money
	if req.OpeningBalance != "" {
		m, err := req.OpeningBalance.Signed()
		if err != nil {
			writeError(w, r, err)
			return
		}
		opening = m
	}

	a, err := s.deps.Catalog.CreateAccount(r.Context(), core.Account{
		OwnerID:        owner(r),
		Name:           sanitizeInput(req.Name),
		Kind:           req.Kind,
		OpeningBalance: opening,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toAccountResponse(a)).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.deps.Catalog.GetAccount(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toAccountResponse(a)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := req.Amount.Signed()
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateOr(req.Date, s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx := core.Transaction{
		OwnerID:     owner(r),
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Date:        date,
		Description: sanitizeInput(req.Description),
	}
	id, err := s.deps.Transactions.Record(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(transactionResponse{
			ID:          id,
			AccountID:   tx.AccountID,
			CategoryID:  tx.CategoryID,
			Amount:      tx.Amount.String(),
			Date:        tx.Date.String(),
			Description: tx.Description,
		}).
		Write(w)
}

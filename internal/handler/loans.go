package handler

import (
	"net/http"

	"github.com/Dan9191/microloan/internal/models"
)

// maxBorrowers caps the slots of one loan accepted over HTTP; matches the max tag below
const maxBorrowers = 100

type createLoanRequest struct {
	Borrowers []string `json:"borrowers" validate:"required,min=1,max=100,dive,required,eth_addr"`
	Amount    uint64   `json:"amount" validate:"gt=0"`
}

// createLoanResponse tells the lender how much was actually moved
type createLoanResponse struct {
	*models.Loan
	RequestedAmount uint64 `json:"requested_amount"`
	Remainder       uint64 `json:"remainder"`
}

// CreateLoan handles POST /loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	lender, err := caller(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	var req createLoanRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	loan, err := h.svc.CreateGroupLoan(r.Context(), lender, req.Borrowers, req.Amount)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, createLoanResponse{
		Loan:            loan,
		RequestedAmount: req.Amount,
		Remainder:       req.Amount - loan.TotalAmount,
	})
}

// ListLoans handles GET /loans?start=&count=&mine=true
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	start, count, err := pageParams(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	account := ""
	if r.FormValue("mine") == "true" {
		if account, err = caller(r); err != nil {
			h.respondWithAppError(w, r, err)
			return
		}
	}

	loans, err := h.svc.ListLoans(r.Context(), start, count, account)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loans)
}

// TotalLoans handles GET /loans/count
func (h *Handler) TotalLoans(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.GetTotalLoans(r.Context())
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]uint64{"total_loans": total})
}

// GetLoan handles GET /loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	loan, err := h.svc.GetLoan(r.Context(), id)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, loan)
}

// ShareAmount handles GET /loans/{id}/share
func (h *Handler) ShareAmount(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	share, err := h.svc.GetShareAmount(r.Context(), id)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]uint64{"share_amount": share})
}

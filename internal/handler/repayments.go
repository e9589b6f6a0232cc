package handler

import (
	"net/http"
)

// repayRequest leaves the amount to Service.Repay, which checks it after the loan and borrower
type repayRequest struct {
	Amount uint64 `json:"amount"`
}

// Repay handles POST /loans/{id}/repay
func (h *Handler) Repay(w http.ResponseWriter, r *http.Request) {
	borrower, err := caller(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	id, err := loanIDParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	var req repayRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	rec, err := h.svc.Repay(r.Context(), borrower, id, req.Amount)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// RepaymentStatus handles GET /loans/{id}/repayments/{account}
func (h *Handler) RepaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	account, err := h.accountParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	rec, err := h.svc.GetRepaymentStatus(r.Context(), id, account)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// FullyRepaid handles GET /loans/{id}/fully-repaid
func (h *Handler) FullyRepaid(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	full, err := h.svc.IsLoanFullyRepaid(r.Context(), id)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"fully_repaid": full})
}

package handler

import (
	"net/http"
)

type approveRequest struct {
	Amount *uint64 `json:"amount" validate:"required"`
}

// Approve handles POST /allowance. Amount zero revokes the allowance.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	owner, err := caller(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	var req approveRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	allowance, err := h.svc.Approve(r.Context(), owner, *req.Amount)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, allowance)
}

// Allowance handles GET /allowance
func (h *Handler) Allowance(w http.ResponseWriter, r *http.Request) {
	owner, err := caller(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	allowance, err := h.svc.Allowance(r.Context(), owner)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, allowance)
}

// Balance handles GET /accounts/{account}/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	balance, err := h.svc.BalanceOf(r.Context(), account)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balance)
}

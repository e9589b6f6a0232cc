package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/microloan/internal/models"
	"github.com/beevik/etree"
)

// buildStatement renders a loan and its repayment slots as an XML document
func (h *Handler) buildStatement(loan *models.Loan, slots []models.RepaymentSlot, generated time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("LoanStatement")
	root.CreateAttr("id", strconv.FormatUint(loan.ID, 10))
	root.CreateAttr("generated", generated.UTC().Format(time.RFC3339))

	root.CreateElement("Lender").SetText(loan.Lender)
	root.CreateElement("CreatedAt").SetText(loan.CreatedAt.UTC().Format(time.RFC3339))
	root.CreateElement("IsActive").SetText(strconv.FormatBool(loan.IsActive))
	root.CreateElement("FullyRepaid").SetText(strconv.FormatBool(models.AllRepaid(slots)))
	h.amountElement(root, "ShareAmount", loan.ShareAmount)
	h.amountElement(root, "TotalAmount", loan.TotalAmount)

	var repaid uint64
	borrowers := root.CreateElement("Borrowers")
	for _, s := range slots {
		slot := borrowers.CreateElement("Slot")
		slot.CreateAttr("index", strconv.Itoa(s.Slot))
		slot.CreateAttr("repaid", strconv.FormatBool(s.HasRepaid))
		slot.CreateElement("Account").SetText(s.Borrower)
		if s.HasRepaid {
			repaid += s.RepaymentAmount
			h.amountElement(slot, "RepaymentAmount", s.RepaymentAmount)
			if s.RepaidAt != nil {
				slot.CreateElement("RepaidAt").SetText(s.RepaidAt.UTC().Format(time.RFC3339))
			}
		}
	}
	h.amountElement(root, "RepaidAmount", repaid)

	doc.Indent(2)
	return doc
}

func (h *Handler) amountElement(parent *etree.Element, tag string, amount uint64) {
	el := parent.CreateElement(tag)
	el.CreateAttr("display", h.svc.FormatAmount(amount))
	el.SetText(strconv.FormatUint(amount, 10))
}

// Statement handles GET /loans/{id}/statement.xml
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
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
	slots, err := h.svc.Slots(r.Context(), id)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	body, err := h.buildStatement(loan, slots, h.svc.Now()).WriteToBytes()
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

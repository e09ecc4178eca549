package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eastviewpta.org/internal/audit"
	"eastviewpta.org/internal/site"
)

type contentResponse struct {
	Page    string          `json:"page"`
	Content json.RawMessage `json:"content"`
}

func (a *API) catalogOrFail(w http.ResponseWriter, r *http.Request) (*site.Catalog, bool) {
	if a.catalog == nil {
		writeError(w, r, http.StatusServiceUnavailable, "site catalog unavailable")
		return nil, false
	}
	return a.catalog, true
}

func (a *API) handleContentPage(w http.ResponseWriter, r *http.Request) {
	c, ok := a.catalogOrFail(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "page")
	raw, err := c.Page(name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Page: name, Content: raw})
}

func (a *API) handleDonationGoals(w http.ResponseWriter, r *http.Request) {
	if c, ok := a.catalogOrFail(w, r); ok {
		writeJSON(w, http.StatusOK, c.Goals)
	}
}

func (a *API) handleStoreItems(w http.ResponseWriter, r *http.Request) {
	if c, ok := a.catalogOrFail(w, r); ok {
		writeJSON(w, http.StatusOK, c.Items)
	}
}

func (a *API) handleVolunteerOpportunities(w http.ResponseWriter, r *http.Request) {
	if c, ok := a.catalogOrFail(w, r); ok {
		writeJSON(w, http.StatusOK, c.Opportunities)
	}
}

// The three acknowledgement endpoints record nothing beyond an audit line.

func (a *API) handleDonate(w http.ResponseWriter, r *http.Request) {
	c, ok := a.catalogOrFail(w, r)
	if !ok {
		return
	}
	var req site.DonationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ack, err := c.AcknowledgeDonation(req, a.now())
	a.acknowledge(w, r, "donation.received", ack, err)
}

func (a *API) handlePurchase(w http.ResponseWriter, r *http.Request) {
	c, ok := a.catalogOrFail(w, r)
	if !ok {
		return
	}
	var req site.PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ack, err := c.AcknowledgePurchase(req, a.now())
	a.acknowledge(w, r, "store.purchase", ack, err)
}

func (a *API) handleVolunteerSignup(w http.ResponseWriter, r *http.Request) {
	c, ok := a.catalogOrFail(w, r)
	if !ok {
		return
	}
	var req site.VolunteerSignup
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ack, err := c.AcknowledgeVolunteer(req, a.now())
	a.acknowledge(w, r, "volunteer.signup", ack, err)
}

func (a *API) acknowledge(w http.ResponseWriter, r *http.Request, event string, ack site.Acknowledgement, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"reference":    ack.Reference,
		"amount_cents": ack.AmountCents,
	})
	writeJSON(w, http.StatusCreated, ack)
}

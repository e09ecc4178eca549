package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eastviewpta.org/internal/audit"
	"eastviewpta.org/internal/calendar"
)

// handleCalendarEvents never fails on provider trouble; the listing says
// whether it is live.
func (a *API) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := calendar.ResolveRange(q.Get("startDate"), q.Get("endDate"), q.Get("days"), a.now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.calendar.List(r.Context(), rng))
}

func (a *API) handleCalendarUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), "limit", calendar.DefaultLimit, 1, 50)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.calendar.Upcoming(r.Context(), limit))
}

func (a *API) handleCalendarEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.calendar.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleCalendarCreate(w http.ResponseWriter, r *http.Request) {
	var req calendar.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ev, err := a.calendar.Create(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "calendar.create", map[string]any{"calendar_event_id": ev.ID})
	w.Header().Set("Location", fmt.Sprintf("/v1/calendar/events/%s", ev.ID))
	writeJSON(w, http.StatusCreated, ev)
}

func (a *API) handleCalendarUpdate(w http.ResponseWriter, r *http.Request) {
	var req calendar.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	ev, err := a.calendar.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "calendar.update", map[string]any{"calendar_event_id": ev.ID})
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleCalendarDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.calendar.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "calendar.delete", map[string]any{"calendar_event_id": id})
	w.WriteHeader(http.StatusNoContent)
}

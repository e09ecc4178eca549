package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/obs"
	"eastviewpta.org/internal/pta"
)

type registerRequest struct {
	Notes string `json:"notes"`
}

type attendanceRequest struct {
	Status pta.RegistrationStatus `json:"status"`
}

// eventView adds the caller's registration flag to an event. The flag is
// only present when the request carries an identity.
type eventView struct {
	event  pta.Event
	viewer string
}

func (v eventView) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.event)
	if err != nil || v.viewer == "" {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	_, registered := v.event.ActiveRegistration(v.viewer)
	fields["is_registered"] = json.RawMessage(fmt.Sprint(registered))
	return json.Marshal(fields)
}

func viewEvents(events []pta.Event, viewer string) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{event: e, viewer: viewer})
	}
	return out
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, badRequest(name + " must be a valid date")
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("start"), "start")
	if err != nil {
		handleError(w, r, err)
		return
	}
	to, err := parseTimeParam(q.Get("end"), "end")
	if err != nil {
		handleError(w, r, err)
		return
	}
	events, err := a.svc.ListEvents(r.Context(), pta.EventQuery{
		From:     from,
		To:       to,
		Category: pta.EventCategory(q.Get("category")),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewEvents(events, auth.ActorFromContext(r.Context()).ID))
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req pta.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.CreateEvent(r.Context(), actor, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/events/%s", e.ID))
	writeJSON(w, http.StatusCreated, eventView{event: e, viewer: actor.ID})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.GetEvent(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView{event: e, viewer: actor.ID})
}

func (a *API) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.PublishEvent(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView{event: e, viewer: actor.ID})
}

func (a *API) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.CancelEvent(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView{event: e, viewer: actor.ID})
}

func (a *API) handleRegisterAttendee(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.RegisterAttendee(r.Context(), actor, chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			obs.ObserveRegistrationRejected(reason)
		}
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventView{event: e, viewer: actor.ID})
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, pta.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, pta.ErrEventFull):
		return "event_full"
	case errors.Is(err, pta.ErrValidation):
		return "validation"
	case errors.Is(err, pta.ErrNotFound):
		return "not_found"
	}
	return ""
}

func (a *API) handleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	e, err := a.svc.CancelRegistration(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView{event: e, viewer: actor.ID})
}

func (a *API) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	e, err := a.svc.MarkAttendance(r.Context(), auth.ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userID"), req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

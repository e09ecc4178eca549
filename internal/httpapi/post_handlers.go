package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/pta"
)

type commentRequest struct {
	Content string `json:"content"`
}

func (a *API) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// out-of-range values are clamped by the service
	page, err := parseInt(q.Get("page"), "page", 1)
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := parseInt(q.Get("limit"), "limit", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := a.svc.PublishedPosts(r.Context(), page, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req pta.PostInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.svc.SubmitPost(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/blog/%s", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handlePendingPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.svc.PendingPosts(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.GetPost(r.Context(), chi.URLParam(r, "ref"), auth.ActorFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type postMove func(*pta.Service, *http.Request, pta.Actor, string) (pta.BlogPost, error)

func (a *API) movePost(w http.ResponseWriter, r *http.Request, move postMove) {
	p, err := move(a.svc, r, auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	a.movePost(w, r, func(s *pta.Service, r *http.Request, actor pta.Actor, id string) (pta.BlogPost, error) {
		return s.SubmitDraft(r.Context(), actor, id)
	})
}

func (a *API) handleApprovePost(w http.ResponseWriter, r *http.Request) {
	a.movePost(w, r, func(s *pta.Service, r *http.Request, actor pta.Actor, id string) (pta.BlogPost, error) {
		return s.ApprovePost(r.Context(), actor, id)
	})
}

func (a *API) handleArchivePost(w http.ResponseWriter, r *http.Request) {
	a.movePost(w, r, func(s *pta.Service, r *http.Request, actor pta.Actor, id string) (pta.BlogPost, error) {
		return s.ArchivePost(r.Context(), actor, id)
	})
}

func (a *API) handleLikePost(w http.ResponseWriter, r *http.Request) {
	a.movePost(w, r, func(s *pta.Service, r *http.Request, actor pta.Actor, id string) (pta.BlogPost, error) {
		return s.LikePost(r.Context(), actor, id)
	})
}

func (a *API) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := a.svc.AddComment(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleModerateComment(w http.ResponseWriter, r *http.Request) {
	var t pta.Transition
	switch chi.URLParam(r, "action") {
	case "approve":
		t = pta.TransitionApprove
	case "reject":
		t = pta.TransitionReject
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	p, err := a.svc.ModerateComment(r.Context(), auth.ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "commentID"), t)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

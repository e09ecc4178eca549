package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/obs"
	"eastviewpta.org/internal/pta"
	"eastviewpta.org/internal/site"
	"eastviewpta.org/internal/stream"
)

const serviceName = "eastviewpta-api"

// ReadyProbe checks the backing services a request cannot do without.
type ReadyProbe struct {
	Checks map[string]func(context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	names := make([]string, 0, len(rp.Checks))
	for name := range rp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := rp.Checks[name](ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Deps are the collaborators of the HTTP layer. Calendar, Catalog and
// Stream may be nil.
type Deps struct {
	Service  *pta.Service
	Verifier *auth.Verifier
	Auth     *auth.Authenticator
	Calendar *calendar.Mirror
	Catalog  *site.Catalog
	Stream   *stream.Stream
	Ready    ReadyProbe
	Version  string

	CORSOrigins []string
	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty means the
	// peer address is always the client.
	TrustedProxies []netip.Prefix
	// AuthRatePerMinute caps register and login attempts per client IP.
	AuthRatePerMinute int
}

// API is the HTTP layer.
type API struct {
	router   *chi.Mux
	svc      *pta.Service
	verifier *auth.Verifier
	auth     *auth.Authenticator
	calendar *calendar.Mirror
	catalog  *site.Catalog
	stream   *stream.Stream
	ready    ReadyProbe
	version  string
	now      func() time.Time

	corsOrigins    []string
	trustedProxies []netip.Prefix
	authBurst      int
	authLimit      rate.Limit
}

func New(d Deps) *API {
	a := &API{
		svc:         d.Service,
		verifier:    d.Verifier,
		auth:        d.Auth,
		calendar:    d.Calendar,
		catalog:     d.Catalog,
		stream:      d.Stream,
		ready:       d.Ready,
		version:     d.Version,
		now:         time.Now,
		corsOrigins: d.CORSOrigins,

		trustedProxies: d.TrustedProxies,
	}
	if a.calendar == nil {
		a.calendar = calendar.NewMirror(calendar.Disabled{}, nil)
	}
	perMinute := d.AuthRatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	a.authBurst = perMinute
	a.authLimit = rate.Every(time.Minute / time.Duration(perMinute))
	a.router = a.routes()
	return a
}

// Handler returns the fully wired router.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(TrustedRealIP(a.trustedProxies))
	r.Use(LoggingJSON)
	r.Use(Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(a.corsOrigins))
	r.Use(obs.Instrument)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	authed := a.requireGate(auth.Authenticated)
	boardOnly := a.requireGate(auth.BoardOrAdmin)
	adminOnly := a.requireGate(auth.AdminOnly)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			limited := r.With(RateLimit(a.authBurst, a.authLimit))
			limited.Post("/register", a.handleRegister)
			limited.Post("/login", a.handleLogin)
			r.With(authed).Get("/me", a.handleMe)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Get("/pending", a.handlePendingUsers)
			r.With(adminOnly).Put("/{id}/approve", a.handleApproveUser)
			r.With(adminOnly).Put("/{id}/reject", a.handleRejectUser)
			r.With(authed).Get("/profile", a.handleGetProfile)
			r.With(authed).Put("/profile", a.handleUpdateProfile)
		})

		r.Route("/blog", func(r chi.Router) {
			r.With(a.optionalAuth).Get("/", a.handleListPosts)
			r.With(authed).Post("/", a.handleCreatePost)
			r.With(adminOnly).Get("/pending", a.handlePendingPosts)
			r.With(a.optionalAuth).Get("/{ref}", a.handleGetPost)
			r.With(authed).Put("/{id}/submit", a.handleSubmitDraft)
			r.With(adminOnly).Put("/{id}/approve", a.handleApprovePost)
			r.With(adminOnly).Put("/{id}/archive", a.handleArchivePost)
			r.With(authed).Post("/{id}/comments", a.handleAddComment)
			r.With(adminOnly).Put("/{id}/comments/{commentID}/{action}", a.handleModerateComment)
			r.With(authed).Post("/{id}/like", a.handleLikePost)
		})

		r.Route("/events", func(r chi.Router) {
			r.With(a.optionalAuth).Get("/", a.handleListEvents)
			r.With(authed).Post("/", a.handleCreateEvent)
			r.With(a.optionalAuth).Get("/{id}", a.handleGetEvent)
			r.With(boardOnly).Put("/{id}/publish", a.handlePublishEvent)
			r.With(boardOnly).Put("/{id}/cancel", a.handleCancelEvent)
			r.With(authed).Post("/{id}/register", a.handleRegisterAttendee)
			r.With(authed).Delete("/{id}/register", a.handleCancelRegistration)
			r.With(boardOnly).Put("/{id}/attendees/{userID}", a.handleMarkAttendance)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/events", a.handleCalendarEvents)
			r.Get("/upcoming", a.handleCalendarUpcoming)
			r.Get("/events/{id}", a.handleCalendarEvent)
			r.With(authed).Post("/events", a.handleCalendarCreate)
			r.With(authed).Put("/events/{id}", a.handleCalendarUpdate)
			r.With(authed).Delete("/events/{id}", a.handleCalendarDelete)
		})

		r.With(a.optionalAuth).Get("/content/{page}", a.handleContentPage)
		r.Get("/donations/goals", a.handleDonationGoals)
		r.Post("/donations", a.handleDonate)
		r.Get("/store/items", a.handleStoreItems)
		r.Post("/store/purchase", a.handlePurchase)
		r.Get("/volunteers/opportunities", a.handleVolunteerOpportunities)
		r.Post("/volunteers/signup", a.handleVolunteerSignup)

		r.With(boardOnly).Get("/activity", a.Stream)
	})
	return r
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.Logger().Warn("readiness check failed", "error", err, "request_id", requestID(r))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

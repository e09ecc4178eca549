package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/pta"
	"eastviewpta.org/internal/site"
	"eastviewpta.org/internal/stream"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type downProvider struct{}

func (downProvider) List(context.Context, calendar.Range, int) ([]calendar.Event, error) {
	return nil, calendar.ErrUnavailable
}
func (downProvider) Get(context.Context, string) (calendar.Event, error) {
	return calendar.Event{}, calendar.ErrUnavailable
}
func (downProvider) Create(context.Context, calendar.EventInput) (calendar.Event, error) {
	return calendar.Event{}, calendar.ErrUnavailable
}
func (downProvider) Update(context.Context, string, calendar.EventInput) (calendar.Event, error) {
	return calendar.Event{}, calendar.ErrUnavailable
}
func (downProvider) Delete(context.Context, string) error { return calendar.ErrUnavailable }

type apiClient struct {
	baseURL  string
	client   *http.Client
	store    *pta.InMemory
	verifier *auth.Verifier
	t        *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	auth.SetPasswordCostForTests(bcrypt.MinCost)

	store := pta.NewInMemory()
	svc := pta.NewService(store, pta.WithPasswordHasher(auth.HashPassword))
	tokens, err := auth.NewTokens(testSecret)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	catalog, err := site.Load()
	if err != nil {
		t.Fatalf("site.Load: %v", err)
	}

	verifier := auth.NewVerifier(tokens, store)
	api := New(Deps{
		Service:           svc,
		Verifier:          verifier,
		Auth:              auth.NewAuthenticator(store, tokens),
		Calendar:          calendar.NewMirror(downProvider{}, nil),
		Catalog:           catalog,
		Stream:            stream.New(),
		Version:           "test",
		AuthRatePerMinute: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		store:    store,
		verifier: verifier,
		t:        t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, token)
}

// signup registers through the API and then sets role and status directly in
// the store, the way an admin bootstrap would.
func (c *apiClient) signup(email string, role pta.Role, status pta.UserStatus) (token, id string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"first_name": "Test",
		"last_name":  "Parent",
		"email":      email,
		"password":   "correct-horse",
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}
	session := decode[auth.Session](c.t, resp)
	if session.User.Status != pta.UserPending {
		c.t.Fatalf("new account should be pending, got %s", session.User.Status)
	}
	u, err := c.store.GetUser(context.Background(), session.User.ID)
	if err != nil {
		c.t.Fatalf("GetUser: %v", err)
	}
	u.Role, u.Status = role, status
	if _, err := c.store.UpdateUser(context.Background(), u); err != nil {
		c.t.Fatalf("UpdateUser: %v", err)
	}
	return session.Token, u.ID
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil
	}
	return decode[map[string]any](t, resp)
}

func TestApprovalMakesExistingTokenPass(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.signup("admin@example.com", pta.RoleAdmin, pta.UserApproved)
	memberToken, memberID := api.signup("parent@example.com", pta.RoleMember, pta.UserPending)

	body := expectStatus(t, api.get("/v1/auth/me", nil, memberToken), http.StatusForbidden)
	if body["error"] != auth.ErrNotApproved.Error() {
		t.Fatalf("unexpected error body: %v", body)
	}

	expectStatus(t, api.do(http.MethodPut, "/v1/users/"+memberID+"/approve", nil, adminToken), http.StatusOK)

	me := expectStatus(t, api.get("/v1/auth/me", nil, memberToken), http.StatusOK)
	if me["status"] != "approved" || me["full_name"] != "Test Parent" {
		t.Fatalf("unexpected profile: %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Fatal("password hash must never be serialized")
	}

	// Suspension takes effect on the very next request.
	expectStatus(t, api.do(http.MethodPut, "/v1/users/"+memberID+"/reject", nil, adminToken), http.StatusOK)
	expectStatus(t, api.get("/v1/auth/me", nil, memberToken), http.StatusForbidden)
}

func TestAuthFailures(t *testing.T) {
	api := newTestAPI(t)
	memberToken, _ := api.signup("member@example.com", pta.RoleMember, pta.UserApproved)

	resp := api.get("/v1/users/pending", nil, "")
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate on missing token")
	}
	body := expectStatus(t, resp, http.StatusUnauthorized)
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("expected request_id in error body: %v", body)
	}

	resp = api.get("/v1/users/pending", nil, "not-a-jwt")
	if !strings.Contains(resp.Header.Get("WWW-Authenticate"), "invalid_token") {
		t.Fatalf("unexpected WWW-Authenticate: %q", resp.Header.Get("WWW-Authenticate"))
	}
	expectStatus(t, resp, http.StatusUnauthorized)

	expectStatus(t, api.get("/v1/users/pending", nil, memberToken), http.StatusForbidden)

	resp = api.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    "member@example.com",
		"password": "wrong-password",
	}, "")
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = api.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    "MEMBER@example.com",
		"password": "correct-horse",
	}, "")
	session := expectStatus(t, resp, http.StatusOK)
	if session["token"] == "" {
		t.Fatal("expected token on login")
	}
}

func TestRegisterRejectsDuplicateAndUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	api.signup("dup@example.com", pta.RoleMember, pta.UserPending)

	resp := api.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"first_name": "Other",
		"last_name":  "Parent",
		"email":      "Dup@Example.com",
		"password":   "correct-horse",
	}, "")
	expectStatus(t, resp, http.StatusConflict)

	resp = api.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"first_name": "Other",
		"last_name":  "Parent",
		"email":      "new@example.com",
		"password":   "correct-horse",
		"role":       "admin",
	}, "")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPostModerationFlow(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.signup("admin@example.com", pta.RoleAdmin, pta.UserApproved)
	memberToken, _ := api.signup("writer@example.com", pta.RoleMember, pta.UserApproved)

	post := expectStatus(t, api.do(http.MethodPost, "/v1/blog", map[string]any{
		"title":   "Spring Book Fair",
		"content": "Come **early**.",
		"tags":    []string{"Events", "events"},
	}, memberToken), http.StatusCreated)
	if post["status"] != "pending" || post["published_at"] != nil {
		t.Fatalf("member post should be pending and unpublished: %v", post)
	}
	id := post["id"].(string)
	slug := post["slug"].(string)

	page := expectStatus(t, api.get("/v1/blog", nil, ""), http.StatusOK)
	if page["total"].(float64) != 0 {
		t.Fatalf("pending post must not be listed: %v", page)
	}
	expectStatus(t, api.get("/v1/blog/"+slug, nil, ""), http.StatusNotFound)
	expectStatus(t, api.get("/v1/blog/"+slug, nil, memberToken), http.StatusOK)
	expectStatus(t, api.do(http.MethodPut, "/v1/blog/"+id+"/approve", nil, memberToken), http.StatusForbidden)

	pending := decode[[]map[string]any](t, api.get("/v1/blog/pending", nil, adminToken))
	if len(pending) != 1 {
		t.Fatalf("expected one pending post, got %d", len(pending))
	}

	approved := expectStatus(t, api.do(http.MethodPut, "/v1/blog/"+id+"/approve", nil, adminToken), http.StatusOK)
	publishedAt := approved["published_at"]
	if approved["status"] != "published" || publishedAt == nil {
		t.Fatalf("approval should publish: %v", approved)
	}
	again := expectStatus(t, api.do(http.MethodPut, "/v1/blog/"+id+"/approve", nil, adminToken), http.StatusOK)
	if again["published_at"] != publishedAt {
		t.Fatalf("published_at changed on re-approval: %v -> %v", publishedAt, again["published_at"])
	}

	page = expectStatus(t, api.get("/v1/blog", url.Values{"page": {"1"}, "limit": {"500"}}, ""), http.StatusOK)
	if page["total"].(float64) != 1 || page["limit"].(float64) != 50 {
		t.Fatalf("unexpected page: %v", page)
	}

	commented := expectStatus(t, api.do(http.MethodPost, "/v1/blog/"+id+"/comments", map[string]any{"content": "See you there"}, memberToken), http.StatusCreated)
	comments := commented["comments"].([]any)
	commentID := comments[len(comments)-1].(map[string]any)["id"].(string)
	moderated := expectStatus(t, api.do(http.MethodPut, "/v1/blog/"+id+"/comments/"+commentID+"/approve", nil, adminToken), http.StatusOK)
	if moderated["comment_count"].(float64) != 1 {
		t.Fatalf("expected one approved comment: %v", moderated)
	}

	liked := expectStatus(t, api.do(http.MethodPost, "/v1/blog/"+id+"/like", nil, memberToken), http.StatusOK)
	liked = expectStatus(t, api.do(http.MethodPost, "/v1/blog/"+id+"/like", nil, memberToken), http.StatusOK)
	if liked["like_count"].(float64) != 1 {
		t.Fatalf("likes must be idempotent: %v", liked)
	}
}

func eventBody(start time.Time, maxAttendees int) map[string]any {
	return map[string]any{
		"title":                 "Science Night",
		"description":           "Labs open to families",
		"start_date":            start.Format(time.RFC3339),
		"end_date":              start.Add(2 * time.Hour).Format(time.RFC3339),
		"category":              "educational",
		"registration_required": true,
		"max_attendees":         maxAttendees,
	}
}

func TestEventRegistrationCapacity(t *testing.T) {
	api := newTestAPI(t)
	boardToken, _ := api.signup("board@example.com", pta.RoleBoard, pta.UserApproved)
	aliceToken, _ := api.signup("alice@example.com", pta.RoleMember, pta.UserApproved)
	bobToken, _ := api.signup("bob@example.com", pta.RoleMember, pta.UserApproved)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	ev := expectStatus(t, api.do(http.MethodPost, "/v1/events", eventBody(start, 1), aliceToken), http.StatusCreated)
	if ev["status"] != "draft" {
		t.Fatalf("new events start as drafts: %v", ev)
	}
	id := ev["id"].(string)

	expectStatus(t, api.do(http.MethodPost, "/v1/events/"+id+"/register", nil, bobToken), http.StatusBadRequest)
	expectStatus(t, api.do(http.MethodPut, "/v1/events/"+id+"/publish", nil, aliceToken), http.StatusForbidden)
	expectStatus(t, api.do(http.MethodPut, "/v1/events/"+id+"/publish", nil, boardToken), http.StatusOK)

	reg := expectStatus(t, api.do(http.MethodPost, "/v1/events/"+id+"/register", map[string]any{"notes": "two kids"}, aliceToken), http.StatusCreated)
	if reg["is_registered"] != true || reg["is_full"] != true {
		t.Fatalf("unexpected registration result: %v", reg)
	}

	body := expectStatus(t, api.do(http.MethodPost, "/v1/events/"+id+"/register", nil, aliceToken), http.StatusBadRequest)
	if body["error"] != pta.ErrAlreadyRegistered.Error() {
		t.Fatalf("expected already registered, got %v", body)
	}
	body = expectStatus(t, api.do(http.MethodPost, "/v1/events/"+id+"/register", nil, bobToken), http.StatusBadRequest)
	if body["error"] != pta.ErrEventFull.Error() {
		t.Fatalf("expected event full, got %v", body)
	}

	expectStatus(t, api.do(http.MethodDelete, "/v1/events/"+id+"/register", nil, aliceToken), http.StatusOK)
	expectStatus(t, api.do(http.MethodPost, "/v1/events/"+id+"/register", nil, bobToken), http.StatusCreated)

	list := decode[[]map[string]any](t, api.get("/v1/events", nil, aliceToken))
	if len(list) != 1 || list[0]["is_registered"] != false {
		t.Fatalf("unexpected listing for alice: %v", list)
	}
	anon := decode[[]map[string]any](t, api.get("/v1/events", nil, ""))
	if _, ok := anon[0]["is_registered"]; ok {
		t.Fatal("anonymous listing must not carry is_registered")
	}
	got, err := api.store.GetEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if len(got.Attendees) != 2 || got.RegisteredCount() != 1 {
		t.Fatalf("cancelled entries stay on the list: %+v", got.Attendees)
	}
}

func TestEventEndBeforeStartRejected(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("organizer@example.com", pta.RoleMember, pta.UserApproved)
	start := time.Now().Add(24 * time.Hour)
	req := eventBody(start, 0)
	req["end_date"] = start.Add(-time.Hour).Format(time.RFC3339)

	body := expectStatus(t, api.do(http.MethodPost, "/v1/events", req, token), http.StatusBadRequest)
	if body["error"] != "endDate must be after startDate" {
		t.Fatalf("unexpected error: %v", body)
	}
}

func TestCalendarDegrades(t *testing.T) {
	api := newTestAPI(t)

	listing := expectStatus(t, api.get("/v1/calendar/events", url.Values{"days": {"7"}}, ""), http.StatusOK)
	if listing["available"] != false || listing["count"].(float64) != 0 {
		t.Fatalf("unexpected degraded listing: %v", listing)
	}
	expectStatus(t, api.get("/v1/calendar/upcoming", nil, ""), http.StatusOK)
	expectStatus(t, api.get("/v1/calendar/events", url.Values{"days": {"0"}}, ""), http.StatusBadRequest)

	body := expectStatus(t, api.get("/v1/calendar/events/abc", nil, ""), http.StatusBadGateway)
	if body["error"] != calendar.ErrUnavailable.Error() {
		t.Fatalf("provider details must not leak: %v", body)
	}
}

func TestSiteCatalogEndpoints(t *testing.T) {
	api := newTestAPI(t)

	page := expectStatus(t, api.get("/v1/content/home", nil, ""), http.StatusOK)
	if page["page"] != "home" || page["content"] == nil {
		t.Fatalf("unexpected page: %v", page)
	}
	expectStatus(t, api.get("/v1/content/missing", nil, ""), http.StatusNotFound)

	goals := decode[[]map[string]any](t, api.get("/v1/donations/goals", nil, ""))
	if len(goals) == 0 {
		t.Fatal("expected donation goals")
	}
	ack := expectStatus(t, api.do(http.MethodPost, "/v1/donations", map[string]any{
		"amount_cents": 2500,
		"donor_email":  "donor@example.com",
	}, ""), http.StatusCreated)
	if !strings.HasPrefix(ack["reference"].(string), "DON-") {
		t.Fatalf("unexpected reference: %v", ack)
	}
	expectStatus(t, api.do(http.MethodPost, "/v1/donations", map[string]any{"amount_cents": 0}, ""), http.StatusBadRequest)
}

func TestTrailingDataRejected(t *testing.T) {
	api := newTestAPI(t)
	req, err := http.NewRequest(http.MethodPost, api.baseURL+"/v1/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"x"} {}`))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body := expectStatus(t, resp, http.StatusBadRequest)
	if !strings.Contains(fmt.Sprint(body["error"]), "unexpected data") {
		t.Fatalf("unexpected error: %v", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	expectStatus(t, api.get("/healthz", nil, ""), http.StatusOK)
	expectStatus(t, api.get("/readyz", nil, ""), http.StatusOK)
	info := expectStatus(t, api.get("/v1/info", nil, ""), http.StatusOK)
	if info["version"] != "test" {
		t.Fatalf("unexpected info: %v", info)
	}
	expectStatus(t, api.get("/v1/nowhere", nil, ""), http.StatusNotFound)
}

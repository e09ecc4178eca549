// Package client is a typed HTTP client for the PTA API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/pta"
)

// APIError is a non-2xx answer. It unwraps to the matching domain error so
// callers can use errors.Is with the pta and auth sentinels.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: %d %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return mapAPIError(e.Status, e.Message) }

func mapAPIError(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		if msg == pta.ErrInvalidCredentials.Error() {
			return pta.ErrInvalidCredentials
		}
		if msg == auth.ErrInvalidToken.Error() {
			return auth.ErrInvalidToken
		}
		return auth.ErrUnauthenticated
	case http.StatusForbidden:
		switch msg {
		case auth.ErrNotApproved.Error():
			return auth.ErrNotApproved
		case auth.ErrForbidden.Error():
			return auth.ErrForbidden
		}
		return pta.ErrForbidden
	case http.StatusBadRequest:
		switch msg {
		case pta.ErrAlreadyRegistered.Error():
			return pta.ErrAlreadyRegistered
		case pta.ErrEventFull.Error():
			return pta.ErrEventFull
		}
		return pta.ErrValidation
	case http.StatusNotFound:
		return pta.ErrNotFound
	case http.StatusConflict:
		return pta.ErrConflict
	case http.StatusBadGateway:
		return calendar.ErrUnavailable
	}
	return nil
}

// Client calls the API over HTTP. The bearer token is taken per call from
// the context (see auth.ContextWithToken).
type Client struct {
	base *url.URL
	http *http.Client
}

func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error, RequestID: payload.RequestID}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, in pta.NewUser) (auth.Session, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", nil, in, &s)
	return s, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	return s, err
}

func (c *Client) Me(ctx context.Context) (pta.User, error) {
	var u pta.User
	err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, nil, &u)
	return u, err
}

func (c *Client) PublishedPosts(ctx context.Context, page, limit int) (pta.PostPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var p pta.PostPage
	err := c.do(ctx, http.MethodGet, "/v1/blog", q, nil, &p)
	return p, err
}

func (c *Client) SubmitPost(ctx context.Context, in pta.PostInput) (pta.BlogPost, error) {
	var p pta.BlogPost
	err := c.do(ctx, http.MethodPost, "/v1/blog", nil, in, &p)
	return p, err
}

func (c *Client) Events(ctx context.Context) ([]pta.Event, error) {
	var events []pta.Event
	err := c.do(ctx, http.MethodGet, "/v1/events", nil, nil, &events)
	return events, err
}

func (c *Client) RegisterAttendee(ctx context.Context, eventID, notes string) (pta.Event, error) {
	var e pta.Event
	err := c.do(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(eventID)+"/register", nil,
		map[string]string{"notes": notes}, &e)
	return e, err
}

func (c *Client) CalendarUpcoming(ctx context.Context, limit int) (calendar.Listing, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var l calendar.Listing
	err := c.do(ctx, http.MethodGet, "/v1/calendar/upcoming", q, nil, &l)
	return l, err
}

// CheckHealth asks the gRPC health service at target for the overall status.
func CheckHealth(ctx context.Context, target string, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

var errNotServing = errors.New("health: not serving")

// RequireServing is CheckHealth that fails unless the status is SERVING.
func RequireServing(ctx context.Context, target string, opts ...grpc.DialOption) error {
	st, err := CheckHealth(ctx, target, opts...)
	if err != nil {
		return err
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, st)
	}
	return nil
}

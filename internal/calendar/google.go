package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eastviewpta.org/internal/obs"
)

const (
	DefaultBaseURL  = "https://www.googleapis.com/calendar/v3"
	DefaultTimeout  = 5 * time.Second
	defaultTimeZone = "America/Chicago"
	maxErrorBody    = 512
)

// GoogleConfig configures the Calendar v3 REST client. Exactly one of APIKey
// (read-only public calendars) or AccessToken is expected.
type GoogleConfig struct {
	BaseURL     string
	CalendarID  string
	APIKey      string
	AccessToken string
	TimeZone    string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Google talks to the Calendar v3 REST API.
type Google struct {
	baseURL    string
	calendarID string
	apiKey     string
	token      string
	timeZone   string
	timeout    time.Duration
	http       *http.Client
	log        *slog.Logger
}

func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" && cfg.AccessToken == "" {
		return nil, errors.New("calendar: an API key or access token is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = obs.Logger()
	}
	return &Google{
		baseURL:    base,
		calendarID: cfg.CalendarID,
		apiKey:     cfg.APIKey,
		token:      cfg.AccessToken,
		timeZone:   cfg.TimeZone,
		timeout:    cfg.Timeout,
		http:       client,
		log:        logger.With("module", "calendar"),
	}, nil
}

type gTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type gAttendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

type gEvent struct {
	ID          string      `json:"id,omitempty"`
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
	HTMLLink    string      `json:"htmlLink,omitempty"`
	Start       gTime       `json:"start"`
	End         gTime       `json:"end"`
	Attendees   []gAttendee `json:"attendees,omitempty"`
	Created     string      `json:"created,omitempty"`
	Updated     string      `json:"updated,omitempty"`
}

func (g *Google) List(ctx context.Context, r Range, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 100
	}
	q := url.Values{}
	q.Set("timeMin", r.Start.UTC().Format(time.RFC3339))
	if !r.End.IsZero() {
		q.Set("timeMax", r.End.UTC().Format(time.RFC3339))
	}
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var out struct {
		Items []gEvent `json:"items"`
	}
	if err := g.do(ctx, http.MethodGet, "/events", q, nil, &out); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(out.Items))
	for _, item := range out.Items {
		events = append(events, normalize(item))
	}
	return events, nil
}

func (g *Google) Get(ctx context.Context, id string) (Event, error) {
	var out gEvent
	if err := g.do(ctx, http.MethodGet, "/events/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return Event{}, err
	}
	return normalize(out), nil
}

func (g *Google) Create(ctx context.Context, in EventInput) (Event, error) {
	var out gEvent
	if err := g.do(ctx, http.MethodPost, "/events", nil, g.toWire(in), &out); err != nil {
		return Event{}, err
	}
	return normalize(out), nil
}

func (g *Google) Update(ctx context.Context, id string, in EventInput) (Event, error) {
	var out gEvent
	if err := g.do(ctx, http.MethodPut, "/events/"+url.PathEscape(id), nil, g.toWire(in), &out); err != nil {
		return Event{}, err
	}
	return normalize(out), nil
}

func (g *Google) Delete(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil, nil)
}

func (g *Google) toWire(in EventInput) gEvent {
	ev := gEvent{
		Summary:     in.Title,
		Description: in.Description,
		Location:    in.Location,
		Start:       gTime{DateTime: in.StartDateTime.Format(time.RFC3339), TimeZone: g.timeZone},
		End:         gTime{DateTime: in.EndDateTime.Format(time.RFC3339), TimeZone: g.timeZone},
	}
	for _, email := range in.Attendees {
		ev.Attendees = append(ev.Attendees, gAttendee{Email: email})
	}
	return ev
}

func (g *Google) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if q == nil {
		q = url.Values{}
	}
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}
	u := g.baseURL + "/calendars/" + url.PathEscape(g.calendarID) + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		outcome := "transport_error"
		if isTimeout(err) {
			outcome = "timeout"
		}
		obs.ObserveCalendarFetch(outcome)
		g.log.Warn("calendar request failed", "event", "calendar."+outcome, "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s", ErrUnavailable, outcome)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome := "client_error"
		if resp.StatusCode >= 500 {
			outcome = "server_error"
		}
		obs.ObserveCalendarFetch(outcome)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		g.log.Warn("calendar provider rejected request",
			"event", "calendar."+outcome,
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return fmt.Errorf("%w: provider status %d", ErrUnavailable, resp.StatusCode)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			obs.ObserveCalendarFetch("decode_error")
			g.log.Warn("calendar response not decodable", "event", "calendar.decode_error", "path", path, "error", err)
			return fmt.Errorf("%w: malformed response", ErrUnavailable)
		}
	}
	obs.ObserveCalendarFetch("ok")
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func normalize(e gEvent) Event {
	start, allDay := parseWireTime(e.Start)
	end, _ := parseWireTime(e.End)
	out := Event{
		ID:          e.ID,
		Title:       e.Summary,
		Description: e.Description,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Location:    e.Location,
		Attendees:   make([]Attendee, 0, len(e.Attendees)),
		HTMLLink:    e.HTMLLink,
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, Attendee(a))
	}
	if t, err := time.Parse(time.RFC3339, e.Created); err == nil {
		out.Created = t
	}
	if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
		out.Updated = t
	}
	return out
}

// parseWireTime prefers dateTime; a date-only value marks an all-day event.
func parseWireTime(t gTime) (time.Time, bool) {
	if t.DateTime != "" {
		if v, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return v, false
		}
	}
	if t.Date != "" {
		if v, err := time.Parse(time.DateOnly, t.Date); err == nil {
			return v, true
		}
	}
	return time.Time{}, t.DateTime == "" && t.Date != ""
}

var _ Provider = (*Google)(nil)

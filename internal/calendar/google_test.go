package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogle(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Google {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGoogle(GoogleConfig{
		BaseURL:    srv.URL,
		CalendarID: "pta@example.org",
		APIKey:     "test-key",
		Timeout:    timeout,
	})
	require.NoError(t, err)
	return g
}

func TestGoogleListNormalizes(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/pta@example.org/events", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"a","summary":"Book fair","start":{"dateTime":"2024-05-03T15:00:00-05:00"},"end":{"dateTime":"2024-05-03T17:00:00-05:00"},"location":"Gym"},
			{"id":"b","summary":"No school","start":{"date":"2024-05-10"},"end":{"date":"2024-05-11"}}
		]}`))
	}, time.Second)

	events, err := g.List(context.Background(), DefaultRange(time.Now()), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Book fair", events[0].Title)
	assert.False(t, events[0].AllDay)
	assert.Equal(t, "Gym", events[0].Location)
	assert.Equal(t, "", events[0].Description)
	assert.NotNil(t, events[0].Attendees)

	assert.True(t, events[1].AllDay)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), events[1].Start)
}

func TestGoogleFailuresMapToUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"client error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"forbidden"}}`, http.StatusForbidden)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "missing", http.StatusNotFound)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGoogle(t, tc.handler, 50*time.Millisecond)
			_, err := g.List(context.Background(), DefaultRange(time.Now()), 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
			assert.NotContains(t, err.Error(), "forbidden", "provider body must not leak")
		})
	}
}

func TestGoogleCreateSendsWireEvent(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body gEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Bake sale", body.Summary)
		assert.Equal(t, "America/Chicago", body.Start.TimeZone)
		require.Len(t, body.Attendees, 1)
		body.ID = "new-id"
		body.HTMLLink = "https://calendar.example/new-id"
		_ = json.NewEncoder(w).Encode(body)
	}, time.Second)

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ev, err := g.Create(context.Background(), EventInput{
		Title:         "Bake sale",
		StartDateTime: start,
		EndDateTime:   start.Add(2 * time.Hour),
		Attendees:     []string{"parent@example.org"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", ev.ID)
	assert.Equal(t, start, ev.Start.UTC())
}

func TestGoogleDeleteAcceptsNoContent(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/calendars/pta@example.org/events/abc", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}, time.Second)
	require.NoError(t, g.Delete(context.Background(), "abc"))
}

func TestNewGoogleRequiresCredentials(t *testing.T) {
	_, err := NewGoogle(GoogleConfig{CalendarID: "x"})
	require.Error(t, err)
}

func TestBearerTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"id":"x","summary":"s","start":{"date":"2024-01-01"},"end":{"date":"2024-01-02"}}`))
	}))
	defer srv.Close()
	g, err := NewGoogle(GoogleConfig{BaseURL: srv.URL, AccessToken: "access"})
	require.NoError(t, err)
	ev, err := g.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
}

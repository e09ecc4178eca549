package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/pta"
)

func TestMapAPIError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		msg    string
		want   error
	}{
		{"bad credentials", http.StatusUnauthorized, pta.ErrInvalidCredentials.Error(), pta.ErrInvalidCredentials},
		{"missing token", http.StatusUnauthorized, "authentication required", auth.ErrUnauthenticated},
		{"pending", http.StatusForbidden, auth.ErrNotApproved.Error(), auth.ErrNotApproved},
		{"role", http.StatusForbidden, "forbidden", pta.ErrForbidden},
		{"role gate", http.StatusForbidden, auth.ErrForbidden.Error(), auth.ErrForbidden},
		{"full", http.StatusBadRequest, pta.ErrEventFull.Error(), pta.ErrEventFull},
		{"duplicate", http.StatusBadRequest, pta.ErrAlreadyRegistered.Error(), pta.ErrAlreadyRegistered},
		{"validation", http.StatusBadRequest, "title is required", pta.ErrValidation},
		{"missing", http.StatusNotFound, "event not found", pta.ErrNotFound},
		{"conflict", http.StatusConflict, "email already registered", pta.ErrConflict},
		{"calendar", http.StatusBadGateway, "calendar unavailable", calendar.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := error(&APIError{Status: tc.status, Message: tc.msg})
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.NoError(t, mapAPIError(http.StatusTeapot, "short and stout"))
}

func TestDoSendsTokenFromContext(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/v1/blog":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			_ = json.NewEncoder(w).Encode(pta.PostPage{Total: 3, Page: 2, Pages: 2, Limit: 2})
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"account is not approved","request_id":"req-9"}`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)

	ctx := auth.ContextWithToken(context.Background(), "tok")
	page, err := c.PublishedPosts(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, 3, page.Total)

	_, err = c.Me(context.Background())
	assert.Empty(t, gotAuth)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "req-9", apiErr.RequestID)
	assert.ErrorIs(t, err, auth.ErrNotApproved)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", nil)
	assert.Error(t, err)
}

func TestRequireServing(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dial := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	require.NoError(t, RequireServing(context.Background(), "passthrough:///bufnet", dial...))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	err := RequireServing(context.Background(), "passthrough:///bufnet", dial...)
	assert.ErrorIs(t, err, errNotServing)
}

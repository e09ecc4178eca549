package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/client"
	"eastviewpta.org/internal/ids"
	"eastviewpta.org/internal/pta"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	base := os.Getenv("PTA_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	grpcAddr := os.Getenv("PTA_GRPC_TARGET")
	if grpcAddr == "" {
		grpcAddr = "localhost:9090"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.RequireServing(ctx, grpcAddr); err != nil {
		log.Fatalf("health %s: %v", grpcAddr, err)
	}

	c, err := client.New(base, nil)
	if err != nil {
		log.Fatal(err)
	}

	email := fmt.Sprintf("smoke-%s@example.com", ids.Short())
	const password = "smoke-test-password"
	session, err := c.Register(ctx, pta.NewUser{
		FirstName: "Smoke",
		LastName:  "Test",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	if session.User.Status != pta.UserPending {
		log.Fatalf("new account should be pending, got %s", session.User.Status)
	}

	session, err = c.Login(ctx, email, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	authed := auth.ContextWithToken(ctx, session.Token)
	if _, err := c.Me(authed); !errors.Is(err, auth.ErrNotApproved) {
		log.Fatalf("pending account reached /me: %v", err)
	}

	page, err := c.PublishedPosts(ctx, 1, 5)
	if err != nil {
		log.Fatalf("list posts: %v", err)
	}
	events, err := c.Events(authed)
	if err != nil {
		log.Fatalf("list events: %v", err)
	}
	cal, err := c.CalendarUpcoming(ctx, 5)
	if err != nil {
		log.Fatalf("calendar: %v", err)
	}

	fmt.Printf("smoke test passed: user=%s posts=%d events=%d calendar_available=%t\n",
		session.User.ID, page.Total, len(events), cal.Available)
}

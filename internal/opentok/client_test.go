package opentok

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCreateSession(t *testing.T) {
	var gotAuth, gotPref string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("X-OPENTOK-AUTH")
		_ = r.ParseForm()
		gotPref = r.PostForm.Get("p2p.preference")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"session_id":"2_MX40NzAwMDAwMX5"}]`))
	}))
	defer srv.Close()

	c := testClient()
	c.apiURL = srv.URL
	c.httpClient = srv.Client()

	id, err := c.CreateSession(context.Background(), SessionOptions{
		MediaMode:   MediaModeRouted,
		ArchiveMode: "manual",
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if id != "2_MX40NzAwMDAwMX5" {
		t.Fatalf("unexpected session id %q", id)
	}
	if gotPref != "disabled" {
		t.Fatalf("routed sessions must disable p2p, got %q", gotPref)
	}

	// The auth header must be a project JWT signed with the API secret.
	// Claim validation runs against the pinned clock the client minted
	// with, not the real one.
	token, err := jwt.Parse(gotAuth, func(*jwt.Token) (any, error) {
		return []byte("super-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	if err != nil || !token.Valid {
		t.Fatalf("auth header is not a valid project JWT: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["ist"] != "project" {
		t.Fatalf("expected ist=project claim, got %v", claims["ist"])
	}
	if claims["iss"] != "47000001" {
		t.Fatalf("expected iss to carry the api key, got %v", claims["iss"])
	}
}

func TestCreateSessionVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient()
	c.apiURL = srv.URL
	c.httpClient = srv.Client()

	if _, err := c.CreateSession(context.Background(), SessionOptions{}); err == nil {
		t.Fatal("expected error on vendor 403")
	}
}

func TestCreateSessionEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient()
	c.apiURL = srv.URL
	c.httpClient = srv.Client()

	if _, err := c.CreateSession(context.Background(), SessionOptions{}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/auth"
	"github.com/loomchat/loom-server/internal/config"
	"github.com/loomchat/loom-server/internal/core"
	"github.com/loomchat/loom-server/internal/room"
	"github.com/loomchat/loom-server/internal/service/friends"
	"github.com/loomchat/loom-server/internal/service/groups"
	"github.com/loomchat/loom-server/internal/store"
	"github.com/loomchat/loom-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	hub   *core.Hub
}

// startTestServer boots the full HTTP surface on an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	authorizer := room.NewAuthorizer(st, st)
	logger := zerolog.Nop()
	hub := core.NewHub(st, authorizer, &logger)

	server := NewServer(hub, Services{
		Auth:       authService,
		Friends:    friends.New(st),
		Groups:     groups.New(st),
		Authorizer: authorizer,
		Store:      st,
	}, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, hub: hub}
}

// registerUser creates an account through the API and returns its token and
// stored record.
func (env *testEnv) registerUser(t *testing.T, username string) (string, *store.User) {
	t.Helper()

	resp := env.postJSON(t, "/api/register", "", RegisterRequest{
		Username: username,
		Password: "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d", username, resp.StatusCode)
	}

	var body AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	user, err := env.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("load registered user: %v", err)
	}
	return body.Token, user
}

func (env *testEnv) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (env *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// makeFriends stores an accepted edge directly, bypassing the API.
func (env *testEnv) makeFriends(t *testing.T, a, b string) {
	t.Helper()

	req, err := env.store.CreateFriendRequest(context.Background(), a, b)
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}
	if err := env.store.UpdateFriendRequestStatus(context.Background(), req.ID, store.FriendStatusAccepted); err != nil {
		t.Fatalf("accept friend request: %v", err)
	}
}

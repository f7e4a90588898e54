package app

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/pubsub"
	"github.com/yndnr/wsmesh-go/internal/server/config"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

func testConfig(t *testing.T, nodeID string) *config.ServerConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	cfg.Server.HTTP.ShutdownTimeout = 3 * time.Second
	cfg.Storage.InMemory = true
	cfg.Peer.NodeID = nodeID
	cfg.Auth.ClusterSecret = "test-cluster-secret"
	cfg.Rooms = []config.RoomConfig{{Name: "news", Login: true, AllowPost: true}}
	if err := config.Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	return cfg
}

func startApp(t *testing.T, cfg *config.ServerConfig) *App {
	t.Helper()
	a, err := New(Options{Config: cfg, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	return a
}

// addUser stores a user and returns its signer.
func addUser(t *testing.T, a *App, id string) *service.Signer {
	t.Helper()
	key, err := service.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if err := a.Store().PutUser(context.Background(), &domain.User{ID: id, Key: key}); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	raw, _ := hex.DecodeString(key)
	return service.NewSigner(id, raw)
}

type client struct {
	ws     *websocket.Conn
	frames chan string
}

func dial(t *testing.T, a *App, signer *service.Signer) *client {
	t.Helper()
	url := "ws://" + a.Addr().String() + a.cfg.Server.HTTP.WSPath
	if signer != nil {
		url += "?" + signer.Sign("")
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	c := &client{ws: ws, frames: make(chan string, 64)}
	go func() {
		defer close(c.frames)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			c.frames <- string(data)
		}
	}()
	t.Cleanup(func() { ws.Close() })
	return c
}

func (c *client) send(t *testing.T, text string) {
	t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

// expect waits for a frame with the given prefix that contains every
// fragment, skipping unrelated frames.
func (c *client) expect(t *testing.T, prefix string, fragments ...string) string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				t.Fatalf("connection closed while waiting for %q", prefix)
			}
			if !strings.HasPrefix(f, prefix) {
				continue
			}
			match := true
			for _, frag := range fragments {
				if !strings.Contains(f, frag) {
					match = false
				}
			}
			if match {
				return f
			}
		case <-deadline:
			t.Fatalf("no frame %q %v", prefix, fragments)
		}
	}
}

func (c *client) expectNone(t *testing.T, prefix string) {
	t.Helper()
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case f := <-c.frames:
			if strings.HasPrefix(f, prefix) {
				t.Fatalf("unexpected frame %q", f)
			}
		case <-timeout:
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func members(a *App, room string) int {
	for _, r := range a.Broker().Rooms() {
		if r.Name == room {
			return r.Members
		}
	}
	return -1
}

func TestApp_AliceAndBob(t *testing.T) {
	a := startApp(t, testConfig(t, "alpha"))
	aliceSigner := addUser(t, a, "alice")
	bobSigner := addUser(t, a, "bob")

	alice := dial(t, a, aliceSigner)
	bob := dial(t, a, bobSigner)
	anon := dial(t, a, nil)

	waitFor(t, "two sessions", func() bool { return a.Sessions().Active() == 2 })

	alice.send(t, "SUBSCRIBE,news")
	bob.send(t, "SUBSCRIBE,news")
	anon.send(t, "SUBSCRIBE,news")
	waitFor(t, "news members", func() bool { return members(a, "news") == 2 })

	alice.send(t, "PUT,news,hello bob")
	bob.expect(t, "news,hello bob")
	alice.expect(t, "news,hello bob")
	anon.expectNone(t, "news,")

	bob.send(t, "SUBSCRIBE,"+pubsub.UserRoom("alice"))
	alice.send(t, "SUBSCRIBE,"+pubsub.UserRoom("alice"))
	waitFor(t, "user room member", func() bool { return members(a, pubsub.UserRoom("alice")) == 1 })

	n := domain.NewNotification("chat", "bob", "ping", 60, time.Now())
	if _, err := a.Notify("alice", n); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	alice.expect(t, "notify:alice,", `"text":"ping"`, `"from":"bob"`)
	bob.expectNone(t, "notify:alice,")

	stats := a.Stats()
	if stats.Clients.Clients != 3 || stats.Clients.LoggedIn != 2 {
		t.Errorf("Stats().Clients = %+v", stats.Clients)
	}
	if got := strings.Join(stats.LoginUsers, ","); got != "alice,bob" {
		t.Errorf("LoginUsers = %s", got)
	}
}

func TestApp_ReplayedCredentialsAreAnonymous(t *testing.T) {
	a := startApp(t, testConfig(t, "alpha"))
	signer := addUser(t, a, "alice")
	query := signer.Sign("")

	url := "ws://" + a.Addr().String() + "/ws?" + query
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer second.Close()

	waitFor(t, "two connections", func() bool { return a.Stats().Clients.Clients == 2 })
	if got := a.Stats().Clients.LoggedIn; got != 1 {
		t.Errorf("LoggedIn = %d, want 1", got)
	}
}

func TestApp_PresenceAndNotifyAcrossNodes(t *testing.T) {
	beta := startApp(t, testConfig(t, "beta"))
	alphaCfg := testConfig(t, "alpha")
	alphaCfg.Peer.Links = []config.LinkConfig{{
		ID:  "beta",
		URL: "ws://" + beta.Addr().String() + beta.cfg.Server.HTTP.PeerPath,
	}}
	alpha := startApp(t, alphaCfg)

	waitFor(t, "link alpha->beta", func() bool {
		c, ok := alpha.Links().Get("beta")
		return ok && c.Connected()
	})
	waitFor(t, "beta subscriber", func() bool {
		return strings.Join(beta.Stats().Subscribers, ",") == "alpha"
	})

	carol := dial(t, beta, addUser(t, beta, "carol"))
	carol.send(t, "SUBSCRIBE,"+PresenceRoom)
	waitFor(t, "presence member", func() bool { return members(beta, PresenceRoom) == 1 })

	aliceSigner := addUser(t, alpha, "alice")
	alice := dial(t, alpha, aliceSigner)
	carol.expect(t, PresenceRoom+",", `"kind":"login"`, `"node":"alpha"`, `"user_id":"alice"`)

	alice.send(t, "SUBSCRIBE,"+pubsub.UserRoom("alice"))
	waitFor(t, "user room member", func() bool { return members(alpha, pubsub.UserRoom("alice")) == 1 })

	n := domain.NewNotification("chat", "carol", "from beta", 0, time.Now())
	if sent, err := beta.Notify("alice", n); err != nil || sent != 0 {
		t.Fatalf("Notify() = %d, %v; want no local delivery", sent, err)
	}
	alice.expect(t, "notify:alice,", `"text":"from beta"`)
}

func TestApp_ApplyReload(t *testing.T) {
	cfg := testConfig(t, "alpha")
	a := startApp(t, cfg)

	next := testConfig(t, "alpha")
	next.Server.TrustedOrigin = `https://app\.example`
	next.Log.Level = "debug"
	if err := a.Apply(next); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	defer logger.SetLevel("info")

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+a.Addr().String()+"/ws", header)
	if err == nil {
		t.Fatal("Dial() from untrusted origin succeeded")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Errorf("response = %v, want 403", resp)
	}

	bad := testConfig(t, "alpha")
	bad.Server.TrustedOrigin = "("
	if err := a.Apply(bad); err == nil {
		t.Error("Apply() with a broken pattern succeeded")
	}
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	a, err := New(Options{Config: testConfig(t, "alpha"), Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	if err := a.ready(); err == nil {
		t.Error("ready() = nil after shutdown")
	}
}

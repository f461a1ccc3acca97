package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/goleak"
)

// fakeRealtime accepts one socket, answers the join, waits for a heartbeat
// and then pushes the given change.
func fakeRealtime(t *testing.T, joinStatus string, change map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		var join struct {
			Topic   string `json:"topic"`
			Event   string `json:"event"`
			Ref     string `json:"ref"`
			Payload struct {
				Config struct {
					Changes []map[string]string `json:"postgres_changes"`
				} `json:"config"`
			} `json:"payload"`
		}
		if err := wsjson.Read(ctx, conn, &join); err != nil {
			return
		}
		if join.Event != "phx_join" || len(join.Payload.Config.Changes) != 1 {
			t.Errorf("join = %+v", join)
		}
		_ = wsjson.Write(ctx, conn, map[string]any{
			"topic": join.Topic, "event": "phx_reply", "ref": join.Ref,
			"payload": map[string]any{"status": joinStatus, "response": map[string]any{}},
		})

		for {
			var f frame
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				return
			}
			if f.Event == "heartbeat" && f.Topic == "phoenix" {
				break
			}
		}
		_ = wsjson.Write(ctx, conn, map[string]any{
			"topic": join.Topic, "event": "postgres_changes", "ref": nil,
			"payload": map[string]any{"data": change},
		})

		// drain until the client goes away
		for {
			var f frame
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				return
			}
		}
	}))
}

// TestWatchProgress verifies a user_misc_data update reaches the callback
// and that cancelling the subscription leaves no goroutines behind.
func TestWatchProgress(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	prev := HeartbeatInterval
	HeartbeatInterval = 10 * time.Millisecond
	defer func() { HeartbeatInterval = prev }()

	userID := uuid.New()
	ts := fakeRealtime(t, "ok", map[string]any{
		"type": "UPDATE", "schema": "public", "table": "user_misc_data",
		"record": map[string]any{"user_id": userID, "xp": 1250, "level": 4},
	})
	defer ts.Close()

	c := newTestClient(ts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got models.UserMiscData
	err := c.WatchProgress(ctx, userID, func(row models.UserMiscData) {
		got = row
		cancel()
	})
	if err != nil {
		t.Fatalf("WatchProgress: %v", err)
	}
	if got.UserID != userID || got.XP != 1250 || got.Level != 4 {
		t.Errorf("progress = %+v", got)
	}
}

// TestSubscribeJoinRejected verifies a refused join ends the subscription with an error.
func TestSubscribeJoinRejected(t *testing.T) {
	ts := fakeRealtime(t, "error", nil)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := newTestClient(ts).Subscribe(ctx, Subscription{Table: "user_misc_data"}, func(Change) {
		t.Error("unexpected change")
	})
	if err == nil {
		t.Fatal("expected join error")
	}
}

// TestDecodeProgress verifies malformed records are rejected.
func TestDecodeProgress(t *testing.T) {
	if _, err := DecodeProgress(Change{Record: json.RawMessage(`{"xp": 5}`)}); err == nil {
		t.Error("expected error for record without user_id")
	}
	if _, err := DecodeProgress(Change{Record: json.RawMessage(`[]`)}); err == nil {
		t.Error("expected error for non-object record")
	}
}

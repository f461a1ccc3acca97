package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// HeartbeatInterval is how often the realtime connection is kept alive.
var HeartbeatInterval = 30 * time.Second

// Subscription selects row changes on one table.
type Subscription struct {
	Schema string
	Table  string
	// Filter uses PostgREST syntax, e.g. "user_id=eq.<uuid>".
	Filter string
	// Event is INSERT, UPDATE, DELETE or * (default).
	Event string
}

// Change is one row change delivered by the realtime feed.
type Change struct {
	Type            string          `json:"type"`
	Schema          string          `json:"schema"`
	Table           string          `json:"table"`
	CommitTimestamp string          `json:"commit_timestamp"`
	Record          json.RawMessage `json:"record"`
	OldRecord       json.RawMessage `json:"old_record"`
}

// phoenix channel frame
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type outFrame struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {c.anonKey}, "vsn": {"1.0.0"}}.Encode()
	return u.String(), nil
}

// Subscribe streams changes matching sub to fn until ctx is cancelled or the
// connection fails. It returns nil after a clean cancellation.
func (c *Client) Subscribe(ctx context.Context, sub Subscription, fn func(Change)) error {
	if sub.Schema == "" {
		sub.Schema = "public"
	}
	if sub.Event == "" {
		sub.Event = "*"
	}

	wsURL, err := c.realtimeURL()
	if err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	defer conn.CloseNow()

	token, _ := c.accessToken(ctx)
	topic := "realtime:" + sub.Schema + ":" + sub.Table
	change := map[string]string{"event": sub.Event, "schema": sub.Schema, "table": sub.Table}
	if sub.Filter != "" {
		change["filter"] = sub.Filter
	}
	join := outFrame{
		Topic: topic,
		Event: "phx_join",
		Payload: map[string]any{
			"config":       map[string]any{"postgres_changes": []any{change}},
			"access_token": token,
		},
		Ref: "1",
	}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		return fmt.Errorf("realtime: join %s: %w", topic, err)
	}

	hbCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(hbCtx, conn)
	}()
	defer func() {
		stop()
		wg.Wait()
	}()

	err = c.readLoop(ctx, conn, topic, fn)
	if ctx.Err() != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil
	}
	return err
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(HeartbeatInterval)
	defer t.Stop()
	ref := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ref++
			hb := outFrame{Topic: "phoenix", Event: "heartbeat", Payload: struct{}{}, Ref: strconv.Itoa(ref)}
			if err := wsjson.Write(ctx, conn, hb); err != nil {
				if ctx.Err() == nil {
					c.log.Warn("realtime heartbeat failed", "error", err)
				}
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, topic string, fn func(Change)) error {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("realtime: read: %w", err)
		}
		if f.Topic != topic {
			continue
		}

		switch f.Event {
		case "phx_reply":
			if f.Ref == nil || *f.Ref != "1" {
				continue
			}
			var reply struct {
				Status   string          `json:"status"`
				Response json.RawMessage `json:"response"`
			}
			if err := json.Unmarshal(f.Payload, &reply); err != nil {
				return fmt.Errorf("realtime: decode join reply: %w", err)
			}
			if reply.Status != "ok" {
				return fmt.Errorf("realtime: join %s rejected: %s", topic, reply.Response)
			}
			c.log.Debug("realtime joined", "topic", topic)

		case "postgres_changes":
			var p struct {
				Data Change `json:"data"`
			}
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				c.log.Warn("realtime: bad change payload", "error", err)
				continue
			}
			fn(p.Data)

		case "phx_error", "phx_close":
			return fmt.Errorf("realtime: channel %s closed by server (%s)", topic, f.Event)
		}
	}
}

// ErrMalformedRecord is returned by DecodeProgress for records that are not
// user_misc_data rows.
var ErrMalformedRecord = errors.New("malformed user_misc_data record")

// DecodeProgress turns a user_misc_data change into its row.
func DecodeProgress(ch Change) (models.UserMiscData, error) {
	var row models.UserMiscData
	if err := json.Unmarshal(ch.Record, &row); err != nil {
		return row, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if row.UserID == uuid.Nil {
		return row, ErrMalformedRecord
	}
	return row, nil
}

// WatchProgress streams XP and level updates for one user.
func (c *Client) WatchProgress(ctx context.Context, userID uuid.UUID, fn func(models.UserMiscData)) error {
	sub := Subscription{Table: "user_misc_data", Filter: "user_id=eq." + userID.String()}
	return c.Subscribe(ctx, sub, func(ch Change) {
		if ch.Type == "DELETE" {
			return
		}
		row, err := DecodeProgress(ch)
		if err != nil {
			c.log.Warn("realtime: skipping progress change", "error", err)
			return
		}
		fn(row)
	})
}

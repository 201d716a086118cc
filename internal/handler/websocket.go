package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"itera/internal/hub"
	"itera/internal/itinerary"
	"itera/internal/session"
)

const (
	wsSendBuffer   = 8
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WSMessage is a websocket frame in either direction. Server frames are
// "snapshot", "pong" and "error"; clients send "ping", "resync", "reached"
// and "event".
type WSMessage struct {
	Type    string          `json:"type"`
	Change  *session.Change `json:"change,omitempty"`
	Payload any             `json:"payload,omitempty"`
}

// wsCommand is a client frame. Payload is decoded per type.
type wsCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type reachedPayload struct {
	Index int `json:"index"`
}

// ServeWS streams a journey snapshot on connect and after every change,
// and accepts progress and disruption commands from the traveler.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.NewString(), wsSendBuffer)
	h.sendTo(client, h.snapshotFrame(nil))
	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.sendTo(client, errorFrame("invalid message: "+err.Error()))
			continue
		}
		if reply := h.handleCommand(cmd); reply != nil {
			h.sendTo(client, reply)
		}
	}
}

// handleCommand applies a client frame and returns the direct reply, if
// any. Successful mutations reach every client through Push.
func (h *Handler) handleCommand(cmd wsCommand) []byte {
	switch cmd.Type {
	case "ping":
		return encodeFrame(WSMessage{Type: "pong"})

	case "resync":
		return h.snapshotFrame(nil)

	case "reached":
		var p reachedPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return errorFrame("invalid reached payload")
		}
		if err := h.sess.MarkReached(p.Index); err != nil {
			return errorFrame(err.Error())
		}
		return nil

	case "event":
		var ev eventRequest
		if err := json.Unmarshal(cmd.Payload, &ev); err != nil {
			return errorFrame("invalid event payload")
		}
		if ev.Source == "" {
			ev.Source = "traveler"
		}
		_, err := h.sess.Inject(itinerary.Event{
			ID:     ev.ID,
			Type:   itinerary.EventType(strings.ToLower(string(ev.Type))),
			Source: ev.Source,
			Detail: ev.Detail,
		})
		if err != nil {
			return errorFrame(err.Error())
		}
		return nil

	default:
		return errorFrame("unknown message type " + cmd.Type)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("websocket write failed", "client_id", client.ID, "error", err)
				}
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Push broadcasts the current snapshot for a session change. It is meant
// to be registered with Session.Subscribe.
func (h *Handler) Push(c session.Change) {
	if frame := h.snapshotFrame(&c); frame != nil {
		h.hub.Broadcast(frame)
	}
}

func (h *Handler) snapshotFrame(c *session.Change) []byte {
	return encodeFrame(WSMessage{Type: "snapshot", Change: c, Payload: h.view()})
}

// sendTo queues a direct reply without blocking the read loop.
func (h *Handler) sendTo(client *hub.Client, frame []byte) {
	if frame == nil {
		return
	}
	if !client.TrySend(frame) {
		h.logger.Debug("websocket reply dropped", "client_id", client.ID)
	}
}

func errorFrame(msg string) []byte {
	return encodeFrame(WSMessage{Type: "error", Payload: errorResponse{Error: msg}})
}

func encodeFrame(m WSMessage) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

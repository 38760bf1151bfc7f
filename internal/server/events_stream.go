package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/dreamengine/internal/events"
)

const (
	formatJSON    = "json"
	formatMsgpack = "msgpack"

	streamBuffer      = 100
	writeTimeout      = 5 * time.Second
	heartbeatInterval = 30 * time.Second
)

// EventsStreamHandler streams bus events to websocket clients.
// GET /api/events/ws?types=A,B&format=json|msgpack
type EventsStreamHandler struct {
	bus       *events.Bus
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		heartbeat: heartbeatInterval,
		log:       log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP upgrades the request and forwards events until the client goes away
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatMsgpack {
		writeError(w, http.StatusBadRequest, "format must be json or msgpack")
		return
	}

	var allowedTypes map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			if t = strings.TrimSpace(t); t != "" {
				allowedTypes[events.EventType(t)] = true
			}
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Same-origin policy is handled by CORS
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect
	ctx := conn.CloseRead(r.Context())

	id, eventChan := h.bus.Subscribe(streamBuffer)
	defer h.bus.Unsubscribe(id)

	h.log.Info().
		Int("subscriber", id).
		Str("format", format).
		Int("type_filters", len(allowedTypes)).
		Msg("Client connected to event stream")

	if err := h.send(ctx, conn, format, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Int("subscriber", id).Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-eventChan:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if allowedTypes != nil && !allowedTypes[event.Type] {
				continue
			}
			if err := h.send(ctx, conn, format, map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			}); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := h.send(ctx, conn, format, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) send(ctx context.Context, conn *websocket.Conn, format string, frame map[string]interface{}) error {
	payload, msgType, err := encodeFrame(format, frame)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event frame")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, msgType, payload); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write event frame")
		return err
	}
	return nil
}

// encodeFrame renders a frame as JSON text or msgpack binary. Msgpack uses
// the json struct tags so both formats carry the same field names.
func encodeFrame(format string, frame map[string]interface{}) ([]byte, websocket.MessageType, error) {
	if format == formatMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(frame); err != nil {
			return nil, 0, fmt.Errorf("failed to encode msgpack frame: %w", err)
		}
		return buf.Bytes(), websocket.MessageBinary, nil
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode json frame: %w", err)
	}
	return data, websocket.MessageText, nil
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/middleware"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

// DefaultStreamChunk is the number of points sent per message
const DefaultStreamChunk = 500

const streamWriteTimeout = 10 * time.Second

// Stream message types
const (
	StreamMeta   = "meta"
	StreamPoints = "points"
	StreamEnd    = "end"
)

// StreamMessage is one websocket frame of a playback stream
type StreamMessage struct {
	Type      string       `json:"type"`
	VehicleID string       `json:"vehicle_id,omitempty"`
	Meta      *wire.Meta   `json:"meta,omitempty"`
	Offset    int          `json:"offset,omitempty"`
	Points    []wire.Point `json:"points,omitempty"`
}

// StreamHandler pushes playback payloads to visualisation clients over websocket
type StreamHandler struct {
	trackingService *service.TrackingService
	upgrader        websocket.Upgrader
}

// NewStreamHandler creates a new stream handler. Upgrades are accepted from
// the same origins the CORS middleware admits.
func NewStreamHandler(trackingService *service.TrackingService, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		trackingService: trackingService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Stream handles GET /api/v1/vehicles/:id/stream?interval=&chunk=. It sends a
// meta frame, the points in chunks and an end frame, then closes.
func (h *StreamHandler) Stream(c *gin.Context) {
	interval, ok := parseInterval(c)
	if !ok {
		return
	}
	chunk := DefaultStreamChunk
	if raw := c.Query("chunk"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "Invalid chunk parameter")
			return
		}
		chunk = n
	}

	// resolve before upgrading so lookup failures get a normal HTTP status
	payload, err := h.trackingService.Playback(c.Request.Context(), c.Param("id"), interval)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logger.WithFields(logrus.Fields{"vehicle_id": payload.VehicleID, "points": len(payload.Points)})
	log.Info("Streaming playback")

	if err := send(conn, StreamMessage{Type: StreamMeta, VehicleID: payload.VehicleID, Meta: &payload.Meta}); err != nil {
		log.WithError(err).Warn("Stream aborted")
		return
	}
	for offset := 0; offset < len(payload.Points); offset += chunk {
		if err := c.Request.Context().Err(); err != nil {
			return
		}
		end := offset + chunk
		if end > len(payload.Points) {
			end = len(payload.Points)
		}
		msg := StreamMessage{Type: StreamPoints, Offset: offset, Points: payload.Points[offset:end]}
		if err := send(conn, msg); err != nil {
			log.WithError(err).Warn("Stream aborted")
			return
		}
	}
	if err := send(conn, StreamMessage{Type: StreamEnd, VehicleID: payload.VehicleID}); err != nil {
		log.WithError(err).Warn("Stream aborted")
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		log.WithError(err).Warn("Stream close frame not sent")
	}
}

func send(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}

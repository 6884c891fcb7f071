package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/onionqc/internal/engine"
	"github.com/MeKo-Tech/onionqc/internal/events"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket request types.
const (
	wsTypeImage = "image"
	wsTypeBatch = "batch"
)

// WebSocket response types.
const (
	wsTypeResponse = "analysis_response"
	wsTypeProgress = "progress"
	wsTypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is an analysis request sent by a client. Image payloads
// are base64 in JSON.
type WebSocketRequest struct {
	Type      string   `json:"type"` // "image" or "batch"
	Image     []byte   `json:"image,omitempty"`
	Filename  string   `json:"filename,omitempty"`
	Images    [][]byte `json:"images,omitempty"`
	Filenames []string `json:"filenames,omitempty"`
}

// WebSocketResponse is a message sent to the client.
type WebSocketResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Done      int     `json:"done,omitempty"`
	Total     int     `json:"total,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serialises writes from batch workers and the read loop.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// analyzeWebSocketHandler handles WebSocket connections for streaming analysis.
func (s *Server) analyzeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	out := &lockedWriter{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, out, data)
		}
	}
}

// handleWebSocketMessage processes one request message.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := uuid.NewString()

	switch req.Type {
	case wsTypeImage:
		s.processWebSocketImage(ctx, conn, req, requestID)
	case wsTypeBatch:
		s.processWebSocketBatch(ctx, conn, req, requestID)
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketImage analyses a single image.
func (s *Server) processWebSocketImage(ctx context.Context, conn WebSocketConnWriter, req WebSocketRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeResponse,
		Status:    "processing",
		Total:     1,
		RequestID: requestID,
	})

	start := time.Now()
	defer observeDuration(events.SourceWS, start)

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	uploadSizeBytes.Observe(float64(len(req.Image)))
	analysis, cached, err := s.analyzeBytes(ctx, req.Image)
	recordAnalysis(events.SourceWS, analysis, err)
	if err != nil {
		s.sendWebSocketError(conn, requestID, errorType(err), err.Error())
		return
	}

	s.publish(ctx, events.AnalysisEvent{
		RequestID: requestID,
		Source:    events.SourceWS,
		Filename:  req.Filename,
		Timestamp: s.now(),
		Analysis:  analysis,
	})

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:     wsTypeResponse,
		Status:   "completed",
		Progress: 1.0,
		Done:     1,
		Total:    1,
		Result: AnalysisResponse{
			Success:   true,
			RequestID: requestID,
			Filename:  req.Filename,
			Cached:    cached,
			Analysis:  &analysis,
		},
		RequestID: requestID,
	})
}

// processWebSocketBatch analyses several images, streaming a progress
// message after each one.
func (s *Server) processWebSocketBatch(ctx context.Context, conn WebSocketConnWriter, req WebSocketRequest, requestID string) {
	if len(req.Images) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No images provided")
		return
	}
	if s.maxBatchImages > 0 && len(req.Images) > s.maxBatchImages {
		s.sendWebSocketError(conn, requestID, "invalid_request",
			fmt.Sprintf("Too many images: %d (max %d)", len(req.Images), s.maxBatchImages))
		return
	}

	total := len(req.Images)
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeResponse,
		Status:    "processing",
		Total:     total,
		RequestID: requestID,
	})

	start := time.Now()
	defer observeDuration(events.SourceWS, start)

	uploads := make([]upload, total)
	for i, data := range req.Images {
		u := upload{Data: data}
		if i < len(req.Filenames) {
			u.Filename = req.Filenames[i]
		}
		uploadSizeBytes.Observe(float64(len(data)))
		uploads[i] = u
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	progress := engine.ProgressFunc(func(done, total int) {
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      wsTypeProgress,
			Status:    "processing",
			Progress:  float64(done) / float64(total),
			Done:      done,
			Total:     total,
			RequestID: requestID,
		})
	})

	items, err := s.analyzeUploads(ctx, uploads, progress)
	if err != nil {
		analysisRequestsTotal.WithLabelValues(events.SourceWS, "error").Inc()
		s.sendWebSocketError(conn, requestID, errorType(err), err.Error())
		return
	}
	for _, it := range items {
		recordAnalysis(events.SourceWS, it.Analysis, nil)
	}

	s.publish(ctx, s.batchEvents(requestID, events.SourceWS, items)...)

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeResponse,
		Status:    "completed",
		Progress:  1.0,
		Done:      total,
		Total:     total,
		Result:    newBatchResponse(requestID, items),
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeError,
		Status:    "error",
		Error:     message,
		ErrorType: errType,
		RequestID: requestID,
	})
}

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errUnknownMessage = errors.New("unknown message type")
	errEmptyPayload   = errors.New("message has no data")
)

const (
	messageAudioPacket = "audio_packet"
	messageImagePacket = "image_packet"
)

// clientMessage is the single envelope of everything clients send on /ws.
type clientMessage struct {
	Type       string  `json:"type"`
	Data       string  `json:"data"`
	SoundLevel float64 `json:"sound_level"`
}

type server struct {
	openSession sessionFactory
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	now         func() time.Time

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	wg    sync.WaitGroup
}

func newServer(openSession sessionFactory, logger *slog.Logger) *server {
	return &server{
		openSession: openSession,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:   time.Now,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (s *server) routes(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.track(conn)
	defer s.untrack(conn)

	// The session outlives the request context so shutdown goes through
	// Close, not cancellation.
	sess, err := s.openSession(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("failed to open session", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer sess.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket closed unexpectedly", "error", err)
			} else {
				s.logger.Info("websocket disconnected")
			}
			return
		}

		if err := s.dispatch(sess, data); err != nil {
			s.logger.Warn("dropped client message", "error", err)
		}
	}
}

func (s *server) track(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
}

func (s *server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
	s.wg.Done()
}

// closeConnections disconnects every client and waits until their sessions
// are closed. Hijacked connections are not covered by http.Server.Shutdown.
func (s *server) closeConnections() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// dispatch hands one client message to the session. Malformed messages are
// reported and never end the connection.
func (s *server) dispatch(sess session, data []byte) error {
	var message clientMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch message.Type {
	case messageAudioPacket:
		pcm, err := decodePayload(message.Data)
		if err != nil {
			return fmt.Errorf("audio packet: %w", err)
		}
		sess.OnAudioPacket(pcm, message.SoundLevel)
	case messageImagePacket:
		image, err := decodePayload(message.Data)
		if err != nil {
			return fmt.Errorf("image packet: %w", err)
		}
		id, err := sess.AddImageBytes(image, s.now())
		if err != nil {
			return fmt.Errorf("image packet: %w", err)
		}
		s.logger.Debug("received image", "id", id)
	default:
		return fmt.Errorf("%w %q", errUnknownMessage, message.Type)
	}
	return nil
}

func decodePayload(data string) ([]byte, error) {
	if data == "" {
		return nil, errEmptyPayload
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return decoded, nil
}

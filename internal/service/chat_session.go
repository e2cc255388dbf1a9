package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/echo-go-api/internal/auth"
	"github.com/noah-isme/echo-go-api/internal/dto"
	"github.com/noah-isme/echo-go-api/internal/fanout"
	"github.com/noah-isme/echo-go-api/internal/observability"
	"github.com/noah-isme/echo-go-api/internal/repository"
)

// Websocket close codes sent when a session ends.
const (
	CloseNormal      = websocket.CloseNormalClosure
	CloseUnexpected  = websocket.CloseInternalServerErr
	CloseAuthFailed  = 4001
	CloseForbidden   = 4003
	CloseChatMissing = 4004
)

// SessionState is the lifecycle position of a chat connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthorizationCheck
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizationCheck:
		return "authorization_check"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SocketConn is the subset of a websocket connection driven by a session.
type SocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Authenticator turns a bearer token into an identity.
type Authenticator interface {
	Parse(token string) (auth.Identity, error)
}

// SessionRequest carries what the upgrade handler learned about the connection.
type SessionRequest struct {
	ChatID        uint
	Identity      auth.Identity
	Token         string
	CorrelationID string
	Context       context.Context
}

// CloseReason is the close frame a session ended with.
type CloseReason struct {
	Code int
	Text string
}

// SessionConfig tunes chat sessions.
type SessionConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	StoreTimeout time.Duration
}

// SessionManager runs the per-connection chat state machine.
type SessionManager struct {
	chats    repository.ChatRepository
	pipeline MessagePipeline
	bus      fanout.Bus
	authn    Authenticator
	cfg      SessionConfig
	logger   zerolog.Logger
}

// NewSessionManager wires the state machine to membership lookups, the pipeline and the bus.
func NewSessionManager(chats repository.ChatRepository, pipeline MessagePipeline, bus fanout.Bus, authn Authenticator, cfg SessionConfig, logger zerolog.Logger) *SessionManager {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &SessionManager{
		chats:    chats,
		pipeline: pipeline,
		bus:      bus,
		authn:    authn,
		cfg:      cfg,
		logger:   logger.With().Str("component", "chat_session").Logger(),
	}
}

type chatSession struct {
	manager  *SessionManager
	conn     SocketConn
	ctx      context.Context
	chatID   uint
	group    string
	identity auth.Identity
	handle   *fanout.Handle
	logger   zerolog.Logger

	mu      sync.Mutex
	state   SessionState
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	reason  CloseReason
}

// Serve drives one connection from Connecting to Closed and returns the close reason.
// It blocks until the connection ends.
func (m *SessionManager) Serve(conn SocketConn, req SessionRequest) CloseReason {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := m.logger.With().Uint("chat_id", req.ChatID).Logger()
	if req.CorrelationID != "" {
		logger = logger.With().Str("correlation_id", req.CorrelationID).Logger()
	}

	s := &chatSession{
		manager: m,
		conn:    conn,
		ctx:     ctx,
		chatID:  req.ChatID,
		group:   fanout.ChatGroup(req.ChatID),
		logger:  logger,
		state:   StateConnecting,
		done:    make(chan struct{}),
	}

	s.transition(StateAuthenticating)
	identity, err := m.authenticate(req)
	if err != nil {
		observability.ChatConnections().WithLabelValues("unauthorized").Inc()
		s.logger.Debug().Err(err).Msg("chat authentication failed")
		return s.close(CloseReason{Code: CloseAuthFailed, Text: "authentication failed"})
	}
	s.identity = identity
	s.logger = s.logger.With().Uint("user_id", identity.UserID).Logger()

	s.transition(StateAuthorizationCheck)
	if reason, ok := m.authorize(ctx, req.ChatID, identity.UserID); !ok {
		s.logger.Debug().Int("code", reason.Code).Msg("chat authorization failed")
		return s.close(reason)
	}

	s.handle = fanout.NewHandle(identity.UserID, m.cfg.SendBuffer)
	m.bus.JoinGroup(s.group, s.handle)
	s.transition(StateJoined)
	observability.ChatConnections().WithLabelValues("joined").Inc()
	observability.ChatActiveSessions().Inc()

	go s.writeLoop()
	return s.close(s.readLoop())
}

func (m *SessionManager) authenticate(req SessionRequest) (auth.Identity, error) {
	if !req.Identity.Anonymous() {
		return req.Identity, nil
	}
	if m.authn == nil || strings.TrimSpace(req.Token) == "" {
		return auth.Identity{}, ErrUnauthenticated
	}
	return m.authn.Parse(req.Token)
}

func (m *SessionManager) authorize(ctx context.Context, chatID, userID uint) (CloseReason, bool) {
	if m.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.StoreTimeout)
		defer cancel()
	}

	chat, err := m.chats.GetWithMembers(ctx, chatID)
	if err != nil {
		if errors.Is(translateStoreError(err, "chat"), ErrNotFound) {
			observability.ChatConnections().WithLabelValues("not_found").Inc()
			return CloseReason{Code: CloseChatMissing, Text: "chat not found"}, false
		}
		observability.ChatConnections().WithLabelValues("error").Inc()
		m.logger.Error().Err(err).Uint("chat_id", chatID).Msg("failed to load chat for session")
		return CloseReason{Code: CloseUnexpected, Text: "unexpected error"}, false
	}
	if !chat.IsParticipant(userID) {
		observability.ChatConnections().WithLabelValues("forbidden").Inc()
		return CloseReason{Code: CloseForbidden, Text: "forbidden"}, false
	}
	return CloseReason{}, true
}

func (s *chatSession) transition(next SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	s.logger.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("chat session transition")
}

func (s *chatSession) readLoop() CloseReason {
	ctx := WithMessageSource(s.ctx, SourceWebsocket)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Msg("chat read loop ended")
			return CloseReason{Code: CloseNormal, Text: "connection closed"}
		}

		var frame dto.ChatSendRequest
		if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Text) == "" {
			continue
		}

		_, err = s.manager.pipeline.SendMessage(ctx, s.chatID, s.identity.UserID, frame.Text, frame.Attachments)
		switch {
		case err == nil:
		case errors.Is(err, ErrForbidden):
			return CloseReason{Code: CloseForbidden, Text: "no longer a participant"}
		case errors.Is(err, ErrValidation):
			s.logger.Debug().Err(err).Msg("dropping invalid chat frame")
		case errors.Is(err, ErrServiceUnavailable):
			s.writeError("service_unavailable", "message could not be stored, try again")
		default:
			s.logger.Warn().Err(err).Msg("failed to process chat message")
			s.writeError("internal_error", "message could not be sent")
		}

		select {
		case <-s.done:
			return s.reason
		default:
		}
	}
}

func (s *chatSession) writeLoop() {
	ticker := time.NewTicker(s.manager.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.handle.Messages():
			if err := s.write(websocket.TextMessage, payload); err != nil {
				s.logger.Debug().Err(err).Msg("chat write loop terminated")
				s.close(CloseReason{Code: CloseNormal, Text: "connection closed"})
				return
			}
		case <-s.handle.Evicted():
			s.close(CloseReason{Code: CloseForbidden, Text: "removed from chat"})
			return
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("chat ping failed")
				s.close(CloseReason{Code: CloseNormal, Text: "connection closed"})
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *chatSession) writeError(code, message string) {
	payload, err := json.Marshal(map[string]string{"type": "error", "error": code, "message": message})
	if err != nil {
		return
	}
	if err := s.write(websocket.TextMessage, payload); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write chat error frame")
	}
}

func (s *chatSession) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	return s.conn.WriteMessage(messageType, data)
}

// close leaves the fanout group before the socket goes away. Only the first reason is kept.
func (s *chatSession) close(reason CloseReason) CloseReason {
	s.once.Do(func() {
		if s.handle != nil {
			s.manager.bus.LeaveGroup(s.group, s.handle)
			observability.ChatActiveSessions().Dec()
		}
		s.reason = reason
		s.transition(StateClosed)

		s.writeMu.Lock()
		close(s.done)
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(reason.Code, reason.Text))
		s.writeMu.Unlock()
		_ = s.conn.Close()

		s.logger.Debug().Int("code", reason.Code).Str("reason", reason.Text).Msg("chat session closed")
	})
	return s.reason
}

package chat

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"ChitChat/logger"
	"ChitChat/tools/errs"
)

// AuthGate resolves a connection-time credential to a user. A structurally
// invalid or expired token, or one pointing at a nonexistent user, rejects;
// no retries, callers close the connection.
type AuthGate struct {
	auth  AuthProvider
	store Store
}

func NewAuthGate(auth AuthProvider, store Store) *AuthGate {
	return &AuthGate{auth: auth, store: store}
}

func (g *AuthGate) Authenticate(ctx context.Context, token string) (*User, error) {
	userID, email, err := g.auth.VerifyCredential(token)
	if err != nil {
		return nil, errs.ErrTokenInvalid.WrapMsg("verify credential", "err", err)
	}
	u, err := g.store.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, errs.ErrTokenInvalid.WrapMsg("unknown subject", "user", userID)
	}
	if email != "" && u.Email != email {
		return nil, errs.ErrTokenInvalid.WrapMsg("subject mismatch", "user", userID)
	}
	return u, nil
}

// Server owns the realtime admission path and shared fan-out machinery.
type Server struct {
	reg      *Registry
	bc       *Broadcaster
	typing   *TypingRouter
	gate     *AuthGate
	presence PresenceTracker // optional
}

func NewServer(reg *Registry, bc *Broadcaster, gate *AuthGate, presence PresenceTracker) *Server {
	return &Server{
		reg:      reg,
		bc:       bc,
		typing:   NewTypingRouter(bc),
		gate:     gate,
		presence: presence,
	}
}

func (s *Server) Registry() *Registry       { return s.reg }
func (s *Server) Broadcaster() *Broadcaster { return s.bc }

// Session owns one connection from admission to teardown. The receive loop
// is single-threaded; teardown runs exactly once no matter how the loop
// exits.
type Session struct {
	srv  *Server
	conn *Conn

	leaveOnce sync.Once
}

// Admit validates the credential, checks room membership, and registers the
// connection. On rejection the transport is closed with a code that
// distinguishes bad credentials, non-membership and internal faults.
func (s *Server) Admit(ctx context.Context, ws Transport, token string, chatID int64) (*Session, error) {
	user, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		rejectTransport(ws, CloseAuthRejected, "auth rejected")
		return nil, err
	}

	ok, err := s.gate.store.IsParticipant(ctx, chatID, user.ID)
	if err != nil {
		rejectTransport(ws, CloseInternalError, "internal error")
		return nil, errs.ErrPersistence.WrapMsg("participant lookup", "chat", chatID, "err", err)
	}
	if !ok {
		rejectTransport(ws, CloseNotParticipant, "not a participant")
		return nil, errs.ErrNotParticipant
	}

	conn := NewConn(ws, chatID, user)
	s.reg.Join(chatID, conn)
	if s.presence != nil {
		s.presence.Online(ctx, chatID, user.ID)
	}
	logger.Infof("[ws] connected conn=%s user=%d chat=%d", conn.ID, user.ID, chatID)
	return &Session{srv: s, conn: conn}, nil
}

func (s *Session) Conn() *Conn { return s.conn }

// Run reads frames until the peer goes away. Malformed or unrecognized
// frames are dropped; only a terminal read error ends the loop.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown(ctx)

	for {
		mt, data, err := s.conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", s.conn.ID, err)
			} else {
				logger.Infof("[ws] read ended conn=%s err=%v", s.conn.ID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		ft, fields, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[ws] drop malformed frame conn=%s err=%v sample=%q", s.conn.ID, perr, sample)
			continue
		}

		switch ft {
		case FrameTyping:
			tp, derr := DecodePayload[TypingPayload](fields)
			if derr != nil {
				logger.Warnf("[ws] drop typing frame conn=%s err=%v", s.conn.ID, derr)
				continue
			}
			s.srv.typing.Relay(s.conn, tp.IsTyping)
		default:
			logger.Warnf("[ws] drop unknown frame type=%q conn=%s", ft, s.conn.ID)
		}
	}
}

// teardown deregisters exactly once and releases the transport, regardless
// of whether the broadcaster already pruned the connection.
func (s *Session) teardown(ctx context.Context) {
	s.leaveOnce.Do(func() {
		s.srv.reg.Leave(s.conn.ChatID, s.conn)
		if s.srv.presence != nil {
			s.srv.presence.Offline(ctx, s.conn.ChatID, s.conn.UserID)
		}
		closeQuiet(s.conn.ws)
		logger.Infof("[ws] disconnected conn=%s user=%d chat=%d", s.conn.ID, s.conn.UserID, s.conn.ChatID)
	})
}

func rejectTransport(ws Transport, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, closeDeadline()); err != nil {
		logger.Debugf("[ws] write close frame: %v", err)
	}
	closeQuiet(ws)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/auth"
	"github.com/ndudnik/pairchat-server/internal/config"
	"github.com/ndudnik/pairchat-server/internal/core"
	"github.com/ndudnik/pairchat-server/internal/proto"
)

// offlineTimeout bounds the presence write that runs after the request
// context is gone.
const offlineTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections, verifies identity, and bridges the
// connection to a core.Session.
type WSHandler struct {
	rt          *Realtime
	authService *auth.Service
	cfg         *config.Config
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(rt *Realtime, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{rt: rt, authService: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Identity is verified before any session exists. The error is opaque
	// on purpose: bad credential and unknown user look the same.
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws connection refused")
		stdhttp.Error(w, "authentication error", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := core.NewSession(claims.UserID, claims.Username, h.cfg.SessionOutboxSize)
	h.rt.Registry.Admit(session)
	h.rt.Presence.Online(ctx, session.UserID)
	h.log.Info().Int64("user_id", session.UserID).Str("username", session.Username).Msg("user connected")

	defer func() {
		// A replaced session must not evict its successor or flip the
		// user offline while the newer connection is alive.
		if h.rt.Registry.Evict(session) {
			offCtx, offCancel := context.WithTimeout(context.Background(), offlineTimeout)
			defer offCancel()
			h.rt.Presence.Offline(offCtx, session.UserID)
			h.log.Info().Int64("user_id", session.UserID).Msg("user disconnected")
		}
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errSessionReplaced) {
		conn.Close(websocket.StatusPolicyViolation, "session replaced")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("user_id", session.UserID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate extracts and verifies the bearer credential from the
// Authorization header or the token query parameter.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.authService.ValidateToken(token)
}

var errSessionReplaced = errors.New("session replaced")

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	limiter := newRateLimiter(h.cfg.EventRateLimit)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundError,
				Error: &proto.Error{Code: "rate_limited", Msg: "too many events"},
			}); err != nil {
				return err
			}
			continue
		}

		reply, err := h.dispatch(ctx, session, inbound)
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", session.UserID).Msg("failed to handle inbound event")
			return err
		}
		if reply != nil {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case event := <-session.Events():
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Int64("user_id", session.UserID).Msg("write ws event")
				return err
			}
		case <-session.Done():
			return errSessionReplaced
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch routes one inbound event to the core component that owns it.
// The returned outbound, if any, is written back on the same connection.
func (h *WSHandler) dispatch(ctx context.Context, session *core.Session, inbound proto.Inbound) (*proto.Outbound, error) {
	switch inbound.Type {
	case proto.InboundMessageSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return protocolError(inbound.Ref, core.ErrCodeBadRequest, "malformed send payload"), nil
		}

		msg, err := h.rt.Sender.Send(ctx, data.ConversationID, session.UserID, data.ReceiverID, data.Content)
		if err != nil {
			return sendAck(inbound.Ref, &proto.AckData{Success: false, Error: ackError(err)}), nil
		}
		return sendAck(inbound.Ref, &proto.AckData{Success: true, Message: messageDTO(msg)}), nil

	case proto.InboundMessageDelivered:
		data, outbound := receiptData(inbound)
		if outbound != nil {
			return outbound, nil
		}
		h.rt.Delivery.MarkDelivered(ctx, data.MessageID, data.ConversationID)
		return nil, nil

	case proto.InboundMessageRead:
		data, outbound := receiptData(inbound)
		if outbound != nil {
			return outbound, nil
		}
		h.rt.Delivery.MarkRead(ctx, data.MessageID, data.ConversationID)
		return nil, nil

	case proto.InboundTypingStart:
		data, outbound := typingData(inbound)
		if outbound != nil {
			return outbound, nil
		}
		h.rt.Typing.Start(session.UserID, data.ReceiverID, data.ConversationID)
		return nil, nil

	case proto.InboundTypingStop:
		data, outbound := typingData(inbound)
		if outbound != nil {
			return outbound, nil
		}
		h.rt.Typing.Stop(session.UserID, data.ReceiverID, data.ConversationID)
		return nil, nil

	default:
		return protocolError(inbound.Ref, core.ErrCodeBadRequest, "unknown event type"), nil
	}
}

func receiptData(inbound proto.Inbound) (proto.ReceiptData, *proto.Outbound) {
	var data proto.ReceiptData
	if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
		return data, protocolError(inbound.Ref, core.ErrCodeBadRequest, "malformed receipt payload")
	}
	return data, nil
}

func typingData(inbound proto.Inbound) (proto.TypingData, *proto.Outbound) {
	var data proto.TypingData
	if err := json.Unmarshal(inbound.Data, &data); err != nil || data.ReceiverID == 0 {
		return data, protocolError(inbound.Ref, core.ErrCodeBadRequest, "malformed typing payload")
	}
	return data, nil
}

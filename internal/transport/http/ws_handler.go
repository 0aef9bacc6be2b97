package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/auth"
	"github.com/loomchat/loom-server/internal/core"
	"github.com/loomchat/loom-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// Authentication is asynchronous: the connection is live immediately, the
// token (query param or hello frame) resolves in the background, and every
// room-scoped event awaits the outcome inside the hub.
type WSHandler struct {
	hub       *core.Hub
	auth      *auth.Service
	readLimit int64
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. readLimit caps the size of a
// single inbound frame; zero keeps the library default.
func NewWSHandler(hub *core.Hub, authService *auth.Service, readLimit int64, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, readLimit: readLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	client := core.NewClient(uuid.NewString())
	h.hub.Register(client)
	defer h.hub.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if token := r.URL.Query().Get("token"); token != "" {
		go h.authenticate(ctx, client, token)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
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
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate resolves the handshake token into a principal. Failure never
// closes the socket; the connection just stays unresolved and room-scoped
// events no-op.
func (h *WSHandler) authenticate(ctx context.Context, client *core.Client, token string) {
	user, err := h.auth.Resolve(ctx, token)
	if err != nil {
		h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("ws auth failed")
		h.hub.FailAuth(client)
		return
	}
	h.hub.Attach(client, core.Principal{UserID: user.ID, Username: user.Username})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.dispatch(ctx, client, inbound)
	}
}

// dispatch routes one inbound frame. Each event runs in its own goroutine
// so an event blocked on authentication never stalls the read loop. A frame
// with an unknown type or a malformed payload is dropped.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := json.Unmarshal(inbound.Data, &hello); err != nil || hello.Token == "" {
			h.hub.FailAuth(client)
			return
		}
		go h.authenticate(ctx, client, hello.Token)

	case proto.InboundTypeJoinRoom:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.JoinRoom(ctx, client, data.RoomID)
		}

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			h.dropFrame(client, inbound.Type, err)
			return
		}
		go h.hub.SendMessage(ctx, client, data.RoomID, data.Text, attachmentsFromData(data.Attachments))

	case proto.InboundTypeCallJoin:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallJoin(ctx, client, data.RoomID)
		}
	case proto.InboundTypeCallLeave:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallLeave(ctx, client, data.RoomID)
		}
	case proto.InboundTypeCallInvite:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallInvite(ctx, client, data.RoomID)
		}
	case proto.InboundTypeCallAccept:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallAccept(ctx, client, data.RoomID)
		}
	case proto.InboundTypeCallReject:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallReject(ctx, client, data.RoomID)
		}
	case proto.InboundTypeCallEnd:
		if data, ok := h.roomData(client, inbound); ok {
			go h.hub.CallEnd(ctx, client, data.RoomID)
		}

	case proto.InboundTypeWebRTCOffer:
		h.relay(ctx, client, core.EventWebRTCOffer, inbound)
	case proto.InboundTypeWebRTCAnswer:
		h.relay(ctx, client, core.EventWebRTCAnswer, inbound)
	case proto.InboundTypeWebRTCICE:
		h.relay(ctx, client, core.EventWebRTCICECandidate, inbound)

	default:
		h.log.Debug().Str("conn_id", client.ID).Str("type", inbound.Type).Msg("unknown inbound type")
	}
}

func (h *WSHandler) relay(ctx context.Context, client *core.Client, kind core.EventKind, inbound proto.Inbound) {
	var data proto.SignalData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		h.dropFrame(client, inbound.Type, err)
		return
	}
	go h.hub.RelaySignal(ctx, client, kind, data.RoomID, data.TargetUserID, data.Payload)
}

func (h *WSHandler) roomData(client *core.Client, inbound proto.Inbound) (proto.RoomData, bool) {
	var data proto.RoomData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		h.dropFrame(client, inbound.Type, err)
		return proto.RoomData{}, false
	}
	if data.RoomID == "" {
		h.dropFrame(client, inbound.Type, errors.New("roomId is required"))
		return proto.RoomData{}, false
	}
	return data, true
}

func (h *WSHandler) dropFrame(client *core.Client, typ string, err error) {
	h.log.Debug().Err(err).Str("conn_id", client.ID).Str("type", typ).Msg("malformed frame dropped")
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

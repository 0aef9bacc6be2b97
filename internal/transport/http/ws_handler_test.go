package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/loomchat/loom-server/internal/proto"
	"github.com/loomchat/loom-server/internal/room"
)

func dialWS(t *testing.T, ctx context.Context, env *testEnv, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()

	var outbound struct {
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if outbound.Type != proto.OutboundTypeEvent {
		t.Fatalf("unexpected outbound type: %s", outbound.Type)
	}
	return outbound.Event, outbound.Data
}

func TestWebSocketMessageDelivery(t *testing.T) {
	env := startTestServer(t)
	aliceToken, alice := env.registerUser(t, "alice")
	bobToken, bob := env.registerUser(t, "bob")
	env.makeFriends(t, alice.ID, bob.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dmRoom := room.DirectRoomID(alice.ID, bob.ID)

	connA := dialWS(t, ctx, env, aliceToken)
	connB := dialWS(t, ctx, env, bobToken)

	sendFrame(t, ctx, connA, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: dmRoom})
	sendFrame(t, ctx, connB, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: dmRoom})

	// Joins are acknowledged by nothing; send after a short settle so both
	// subscriptions are in place.
	time.Sleep(100 * time.Millisecond)

	sendFrame(t, ctx, connA, proto.InboundTypeSendMessage, proto.SendMessageData{
		RoomID: dmRoom,
		Text:   "hi bob",
	})

	event, data := readEvent(t, ctx, connB)
	if event != proto.EventNewMessage {
		t.Fatalf("unexpected event: %s", event)
	}
	var msg proto.MessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Sender != "alice" || msg.Text != "hi bob" || msg.RoomID != dmRoom {
		t.Fatalf("unexpected message payload: %+v", msg)
	}

	// The sender's own subscription receives it too.
	if event, _ := readEvent(t, ctx, connA); event != proto.EventNewMessage {
		t.Fatalf("sender missed the broadcast, got %s", event)
	}
}

func TestWebSocketHelloFrameAuth(t *testing.T) {
	env := startTestServer(t)
	token, _ := env.registerUser(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// No token in the query; authenticate via the hello frame instead.
	conn := dialWS(t, ctx, env, "")
	sendFrame(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})
	sendFrame(t, ctx, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "general"})
	time.Sleep(100 * time.Millisecond)
	sendFrame(t, ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: "general", Text: "it works"})

	event, data := readEvent(t, ctx, conn)
	if event != proto.EventNewMessage {
		t.Fatalf("unexpected event: %s", event)
	}
	var msg proto.MessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Text != "it works" {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
}

func TestWebSocketUnauthenticatedIsSilent(t *testing.T) {
	env := startTestServer(t)
	aliceToken, alice := env.registerUser(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watcher := dialWS(t, ctx, env, aliceToken)
	sendFrame(t, ctx, watcher, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "general"})

	// A connection with a garbage token gets no error and no effects.
	ghost := dialWS(t, ctx, env, "garbage-token")
	sendFrame(t, ctx, ghost, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "general"})
	sendFrame(t, ctx, ghost, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: "general", Text: "boo"})

	time.Sleep(100 * time.Millisecond)

	// The watcher then hears a legitimate message, proving the ghost's send
	// never reached the room.
	sendFrame(t, ctx, watcher, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: "general", Text: "real"})

	event, data := readEvent(t, ctx, watcher)
	if event != proto.EventNewMessage {
		t.Fatalf("unexpected event: %s", event)
	}
	var msg proto.MessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Text != "real" || msg.Sender != alice.Username {
		t.Fatalf("ghost message leaked: %+v", msg)
	}

	// Nothing came back on the ghost connection either.
	readCtx, readCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer readCancel()
	var leaked proto.Outbound
	if err := wsjson.Read(readCtx, ghost, &leaked); err == nil {
		t.Fatalf("ghost received %+v", leaked)
	}
}

func TestWebSocketCallSignaling(t *testing.T) {
	env := startTestServer(t)
	aliceToken, alice := env.registerUser(t, "alice")
	bobToken, bob := env.registerUser(t, "bob")
	env.makeFriends(t, alice.ID, bob.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dmRoom := room.DirectRoomID(alice.ID, bob.ID)

	connA := dialWS(t, ctx, env, aliceToken)
	connB := dialWS(t, ctx, env, bobToken)
	sendFrame(t, ctx, connA, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: dmRoom})
	sendFrame(t, ctx, connB, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: dmRoom})
	time.Sleep(100 * time.Millisecond)

	// Alice joins the call and sees herself as the only participant.
	sendFrame(t, ctx, connA, proto.InboundTypeCallJoin, proto.RoomData{RoomID: dmRoom})

	event, data := readEvent(t, ctx, connA)
	if event != proto.EventCallParticipants {
		t.Fatalf("unexpected event: %s", event)
	}
	var participants proto.CallParticipantsData
	if err := json.Unmarshal(data, &participants); err != nil {
		t.Fatalf("unmarshal participants: %v", err)
	}
	if len(participants.Participants) != 1 || participants.Participants[0] != alice.ID {
		t.Fatalf("unexpected participants: %+v", participants)
	}

	// Bob sees the join.
	if event, _ := readEvent(t, ctx, connB); event != proto.EventCallJoined {
		t.Fatalf("unexpected event for bob: %s", event)
	}

	// Alice sends an offer addressed to Bob; only Bob receives it.
	sendFrame(t, ctx, connA, proto.InboundTypeWebRTCOffer, proto.SignalData{
		RoomID:       dmRoom,
		TargetUserID: bob.ID,
		Payload:      json.RawMessage(`{"sdp":"v=0"}`),
	})

	event, data = readEvent(t, ctx, connB)
	if event != proto.InboundTypeWebRTCOffer {
		t.Fatalf("unexpected event: %s", event)
	}
	var signal proto.SignalEventData
	if err := json.Unmarshal(data, &signal); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	if signal.FromUserID != alice.ID || signal.TargetUserID != bob.ID {
		t.Fatalf("unexpected signal addressing: %+v", signal)
	}
	if string(signal.Payload) != `{"sdp":"v=0"}` {
		t.Fatalf("payload altered in transit: %s", signal.Payload)
	}
}

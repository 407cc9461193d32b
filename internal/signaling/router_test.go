package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/proctor-signaling/internal/models"
	"github.com/mossy-p/proctor-signaling/internal/relay"
)

type relayCall struct {
	roomID string
	userID string
	role   models.Role
	offer  string
}

type fakeRelayer struct {
	mu     sync.Mutex
	calls  []relayCall
	answer json.RawMessage
	err    error
	panics bool
}

func (f *fakeRelayer) Relay(_ context.Context, roomID, userID string, role models.Role, offer json.RawMessage) (json.RawMessage, error) {
	if f.panics {
		panic("relay exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, relayCall{roomID, userID, role, string(offer)})
	f.mu.Unlock()
	return f.answer, f.err
}

type roomFixture struct {
	m       *Manager
	rec     *fakeRecorder
	relay   *fakeRelayer
	router  *Router
	sup     *Connection
	supTr   *fakeTransport
	ex      *Connection
	exTr    *fakeTransport
	supBase int
}

// newRoomFixture connects supervisor S then examinee E to exam-1.
func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	f := &roomFixture{relay: &fakeRelayer{}}
	f.m, f.rec = newTestManager()
	f.router = NewRouter(f.m, f.relay)
	f.sup, f.supTr = mustConnect(t, f.m, "exam-1", "S", models.RoleSupervisor)
	f.ex, f.exTr = mustConnect(t, f.m, "exam-1", "E", models.RoleExaminee)
	f.supBase = len(f.supTr.raw())
	return f
}

func (f *roomFixture) supFrames() []string {
	return f.supTr.raw()[f.supBase:]
}

func TestSupervisorBroadcastReachesEveryoneElse(t *testing.T) {
	f := newRoomFixture(t)
	_, e2 := mustConnect(t, f.m, "exam-1", "E2", models.RoleExaminee)
	f.supBase = len(f.supTr.raw())

	frame := `{"type":"message","content":"hello"}`
	f.router.HandleFrame(context.Background(), f.sup, []byte(frame))

	assert.Equal(t, []string{frame}, f.exTr.raw())
	assert.Equal(t, []string{frame}, e2.raw())
	assert.Empty(t, f.supFrames())

	logs := f.rec.ofType(models.LogMessageToAll)
	require.Len(t, logs, 1)
	assert.Equal(t, "S", logs[0].ActorUserID)
	assert.Equal(t, "exam-1", logs[0].RoomID)
	assert.Equal(t, "/ws/signal/exam-1", logs[0].URLPath)
	assert.Equal(t, "hello", logs[0].Content.Text)
	assert.ElementsMatch(t, []string{"S", "E", "E2"}, logs[0].Content.RecipientUserIDs)
}

func TestExamineeCannotBroadcast(t *testing.T) {
	f := newRoomFixture(t)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"message","content":"cheat?"}`))

	assert.Equal(t, []string{`{"type":"error","message":"You're not Supervisor. Only Supervisor can send message."}`}, f.exTr.raw())
	assert.Empty(t, f.supFrames())
	assert.Empty(t, f.rec.ofType(models.LogMessageToAll))
}

func TestNonSupervisorCannotUnicast(t *testing.T) {
	f := newRoomFixture(t)
	admin, adminTr := mustConnect(t, f.m, "exam-1", "A", models.RoleAdmin)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"message","user_id":"S","content":"psst"}`))
	f.router.HandleFrame(context.Background(), admin, []byte(`{"type":"message","user_id":"E","content":"hi"}`))

	assert.Empty(t, f.supFrames())
	require.Len(t, f.exTr.decoded(t), 1)
	assert.Equal(t, "error", f.exTr.decoded(t)[0]["type"])
	require.Len(t, adminTr.decoded(t), 1)
	assert.Equal(t, "error", adminTr.decoded(t)[0]["type"])
	assert.Empty(t, f.rec.ofType(models.LogMessageToExaminee))
}

func TestUnicastToMissingUser(t *testing.T) {
	f := newRoomFixture(t)

	f.router.HandleFrame(context.Background(), f.sup, []byte(`{"type":"message","user_id":"U999","content":"hi"}`))

	require.Equal(t, []string{`{"type":"error","message":"User U999 not found."}`}, f.supFrames())
	assert.Empty(t, f.exTr.raw())
	assert.Empty(t, f.rec.ofType(models.LogMessageToExaminee))
}

func TestUnicastDeliversFrameUnchangedAndLogs(t *testing.T) {
	f := newRoomFixture(t)

	frame := `{"type":"message","user_id":"E","content":"adjust camera"}`
	f.router.HandleFrame(context.Background(), f.sup, []byte(frame))

	assert.Equal(t, []string{frame}, f.exTr.raw())
	logs := f.rec.ofType(models.LogMessageToExaminee)
	require.Len(t, logs, 1)
	assert.Equal(t, "S", logs[0].ActorUserID)
	assert.Equal(t, []string{"E"}, logs[0].Content.RecipientUserIDs)
	assert.Equal(t, "adjust camera", logs[0].Content.Text)
}

func TestOfferAnswerIsForwardedVerbatim(t *testing.T) {
	f := newRoomFixture(t)
	f.relay.answer = json.RawMessage(`{"sdp":"v=0 answer"}`)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"webrtc-offer","data":{"sdp":"v=0 offer","type":"offer"}}`))

	assert.Equal(t, []string{`{"sdp":"v=0 answer"}`}, f.exTr.raw())
	assert.Empty(t, f.supFrames())
	require.Len(t, f.relay.calls, 1)
	assert.Equal(t, relayCall{"exam-1", "E", models.RoleExaminee, `{"sdp":"v=0 offer","type":"offer"}`}, f.relay.calls[0])
}

func TestOfferRelayFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"status", &relay.StatusError{Code: 502, Body: "no router"}, "Video server error: no router"},
		{"network", errors.New("dial tcp: connection refused"), "Failed to connect to video server: dial tcp: connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRoomFixture(t)
			f.relay.err = tc.err

			f.router.HandleFrame(context.Background(), f.sup, []byte(`{"type":"webrtc-offer","data":{"sdp":"x"}}`))

			frames := f.supTr.decoded(t)[f.supBase:]
			require.Len(t, frames, 1)
			assert.Equal(t, "error", frames[0]["type"])
			assert.Equal(t, tc.want, frames[0]["message"])
			assert.Empty(t, f.exTr.raw())

			_, ok := f.m.Lookup(f.sup)
			assert.True(t, ok, "relay failure must not drop the connection")
		})
	}
}

func TestOfferWithoutData(t *testing.T) {
	f := newRoomFixture(t)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"webrtc-offer"}`))

	assert.Equal(t, []string{`{"type":"error","message":"Missing offer data"}`}, f.exTr.raw())
	assert.Empty(t, f.relay.calls)
}

func TestUnknownTypeIsReportedAndLogged(t *testing.T) {
	f := newRoomFixture(t)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"screen-share"}`))

	assert.Equal(t, []string{`{"type":"error","message":"Unknown message type"}`}, f.exTr.raw())
	diags := f.rec.ofType(models.LogWebsocketError)
	require.Len(t, diags, 1)
	assert.Equal(t, "E", diags[0].ActorUserID)
	assert.Contains(t, diags[0].Content.Text, "screen-share")

	_, ok := f.m.Lookup(f.ex)
	assert.True(t, ok)
}

func TestMalformedFrame(t *testing.T) {
	f := newRoomFixture(t)

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{not json`))

	assert.Equal(t, []string{`{"type":"error","message":"Invalid message format"}`}, f.exTr.raw())
	assert.Len(t, f.rec.ofType(models.LogWebsocketError), 1)
	_, ok := f.m.Lookup(f.ex)
	assert.True(t, ok)
}

func TestFrameFromUnregisteredConnectionIsRefused(t *testing.T) {
	f := newRoomFixture(t)
	f.m.Disconnect(f.ex)
	f.supBase = len(f.supTr.raw())

	f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"message","content":"late"}`))

	closed, _ := f.exTr.isClosed()
	assert.True(t, closed)
	assert.Empty(t, f.supFrames())
	assert.Empty(t, f.exTr.raw())
}

func TestUnregisteredFrameClosesWithPolicyViolation(t *testing.T) {
	m, _ := newTestManager()
	tr := &fakeTransport{}
	stray := &Connection{id: "stray", userID: "E", role: models.RoleExaminee, roomID: "exam-1", transport: tr}

	NewRouter(m, &fakeRelayer{}).HandleFrame(context.Background(), stray, []byte(`{"type":"message"}`))

	closed, code := tr.isClosed()
	assert.True(t, closed)
	assert.Equal(t, ClosePolicyViolation, code)
}

func TestPanicIsConvertedToErrorFrame(t *testing.T) {
	f := newRoomFixture(t)
	f.relay.panics = true

	assert.NotPanics(t, func() {
		f.router.HandleFrame(context.Background(), f.ex, []byte(`{"type":"webrtc-offer","data":{}}`))
	})

	assert.Equal(t, []string{`{"type":"error","message":"Internal server error"}`}, f.exTr.raw())
	assert.Len(t, f.rec.ofType(models.LogWebsocketError), 1)
	_, ok := f.m.Lookup(f.ex)
	assert.True(t, ok)
}

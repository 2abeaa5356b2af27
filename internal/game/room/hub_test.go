package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rolecall/rolecall/internal/game/protocol"
)

var (
	hostUser   = UserInfo{Token: "u-alice", ID: 1, Username: "alice", IsHost: true}
	playerUser = UserInfo{Token: "u-bob", ID: 2, Username: "bob", IsHost: false}
)

// drain decodes every frame currently queued in the outbox.
func drain(t *testing.T, o *Outbox) []protocol.Message {
	t.Helper()
	var msgs []protocol.Message
	for {
		select {
		case frame := <-o.Frames():
			msg, err := protocol.Decode(frame)
			require.NoError(t, err)
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub("abc123", hostUser, zaptest.NewLogger(t))
}

func TestHub_JoinBroadcastsConnect(t *testing.T) {
	h := newTestHub(t)
	out := NewOutbox("alice", 16)

	require.NoError(t, h.Join(hostUser, out))
	assert.Equal(t, 1, h.ClientCount())

	msgs := drain(t, out)
	require.Len(t, msgs, 1, "newcomer hears their own Connect")
	connect := msgs[0].(*protocol.Connect)
	assert.Equal(t, "alice", connect.Username)
	assert.True(t, connect.Host)
	assert.Equal(t, int64(1), connect.HostID)
}

func TestHub_JoinDuplicateUsername(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.Join(hostUser, NewOutbox("alice", 16)))

	// Same username under a fresh token is still the same seat.
	again := UserInfo{Token: "u-alice-2", ID: 1, Username: "alice", IsHost: true}
	err := h.Join(again, NewOutbox("alice", 16))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, 1, h.ClientCount())

	// The seat frees on leave, after which the join succeeds.
	h.Leave(hostUser)
	assert.NoError(t, h.Join(again, NewOutbox("alice", 16)))
}

func TestHub_JoinSeedsPresenceAndReplay(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 16)
	require.NoError(t, h.Join(hostUser, hostOut))

	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)
	h.Dispatch([]byte(`{"type":"PlaceObj","objId":"map-7","x":4,"y":4}`), hostUser)
	drain(t, hostOut)

	playerOut := NewOutbox("bob", 16)
	require.NoError(t, h.Join(playerUser, playerOut))

	msgs := drain(t, playerOut)
	require.Len(t, msgs, 4, "one Connect per existing client, replay, own Connect")

	existing := msgs[0].(*protocol.Connect)
	assert.Equal(t, "alice", existing.Username)
	assert.True(t, existing.Host)

	replayToken := msgs[1].(*protocol.PlaceToken)
	assert.Equal(t, "0", replayToken.ID)
	assert.Equal(t, "orc", replayToken.Kind)
	assert.Equal(t, "alice", replayToken.Controller)

	replayObj := msgs[2].(*protocol.PlaceObj)
	assert.Equal(t, "map-7", replayObj.ObjID)

	own := msgs[3].(*protocol.Connect)
	assert.Equal(t, "bob", own.Username)
	assert.False(t, own.Host)

	// The host hears the newcomer too.
	hostMsgs := drain(t, hostOut)
	require.Len(t, hostMsgs, 1)
	assert.Equal(t, "bob", hostMsgs[0].(*protocol.Connect).Username)
}

func TestHub_LeaveBroadcastsDisconnect(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 16)
	playerOut := NewOutbox("bob", 16)
	require.NoError(t, h.Join(hostUser, hostOut))
	require.NoError(t, h.Join(playerUser, playerOut))
	drain(t, hostOut)

	h.Leave(playerUser)
	assert.Equal(t, 1, h.ClientCount())

	msgs := drain(t, hostOut)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].(*protocol.Disconnect).Username)

	// Leaving twice is harmless.
	h.Leave(playerUser)
	assert.Empty(t, drain(t, hostOut))
}

func TestHub_DispatchStampsAndBroadcasts(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 16)
	playerOut := NewOutbox("bob", 16)
	require.NoError(t, h.Join(hostUser, hostOut))
	require.NoError(t, h.Join(playerUser, playerOut))
	drain(t, hostOut)
	drain(t, playerOut)

	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)

	for _, out := range []*Outbox{hostOut, playerOut} {
		msgs := drain(t, out)
		require.Len(t, msgs, 1)
		pt := msgs[0].(*protocol.PlaceToken)
		assert.Equal(t, "0", pt.ID, "server assigns the id before broadcasting")
		assert.Equal(t, "alice", pt.Controller, "server assigns the controller before broadcasting")
	}
}

func TestHub_DispatchRejectedMutationNotBroadcast(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 16)
	require.NoError(t, h.Join(hostUser, hostOut))
	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)
	drain(t, hostOut)

	// Second placement on the same cell: rejected, silent.
	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"goblin","x":1,"y":1,"colour":"green"}`), hostUser)
	assert.Empty(t, drain(t, hostOut))
}

func TestHub_DispatchUndecodableFrameDropped(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 16)
	require.NoError(t, h.Join(hostUser, hostOut))
	drain(t, hostOut)

	h.Dispatch([]byte(`garbage`), hostUser)
	h.Dispatch([]byte(`{"type":"Teleport"}`), hostUser)
	assert.Empty(t, drain(t, hostOut))
	assert.Equal(t, 1, h.ClientCount(), "bad frames never tear down the session")
}

func TestHub_AuthorizationMatrix(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 32)
	playerOut := NewOutbox("bob", 32)
	require.NoError(t, h.Join(hostUser, hostOut))
	require.NoError(t, h.Join(playerUser, playerOut))

	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)
	drain(t, hostOut)
	drain(t, playerOut)

	// A non-host may not edit the board; nothing reaches anyone.
	for _, frame := range []string{
		`{"type":"PlaceToken","kind":"orc","x":5,"y":5,"colour":"red"}`,
		`{"type":"DeleteToken","tokenId":"0"}`,
		`{"type":"PlaceObj","objId":"map-7","x":0,"y":0}`,
		`{"type":"DeleteObj","id":"0"}`,
		`{"type":"SetController","tokenId":"0","newController":"bob"}`,
	} {
		h.Dispatch([]byte(frame), playerUser)
	}
	assert.Empty(t, drain(t, hostOut))
	assert.Empty(t, drain(t, playerOut))

	// A player may not move a token they do not control.
	h.Dispatch([]byte(`{"type":"Movement","tokenId":"0","dx":1,"dy":0}`), playerUser)
	assert.Empty(t, drain(t, hostOut))

	// Once granted control, the same move goes through.
	h.Dispatch([]byte(`{"type":"SetController","tokenId":"0","newController":"bob"}`), hostUser)
	drain(t, hostOut)
	drain(t, playerOut)
	h.Dispatch([]byte(`{"type":"Movement","tokenId":"0","dx":1,"dy":0}`), playerUser)
	require.Len(t, drain(t, hostOut), 1)
	require.Len(t, drain(t, playerOut), 1)

	// The host may always move.
	h.Dispatch([]byte(`{"type":"Movement","tokenId":"0","dx":0,"dy":1}`), hostUser)
	require.Len(t, drain(t, playerOut), 1)
}

func TestHub_SlowClientDoesNotStallRoom(t *testing.T) {
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 32)
	slowOut := NewOutbox("bob", 1)
	require.NoError(t, h.Join(hostUser, hostOut))
	require.NoError(t, h.Join(playerUser, slowOut))
	drain(t, hostOut)

	// bob's queue holds one frame; everything beyond is dropped for bob only.
	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)
	for i := 0; i < 5; i++ {
		h.Dispatch([]byte(`{"type":"Movement","tokenId":"0","dx":1,"dy":0}`), hostUser)
	}

	assert.Len(t, drain(t, hostOut), 6, "host receives every accepted broadcast")
	assert.Len(t, drain(t, slowOut), 1, "overflow is dropped for the slow client only")
	assert.Equal(t, 2, h.ClientCount(), "a degraded client keeps its seat")
}

func TestHub_EndToEndScenario(t *testing.T) {
	// Host H joins room abc123, places a token, player P joins and replays,
	// H moves the token, P's own placement attempt is dropped.
	h := newTestHub(t)
	hostOut := NewOutbox("alice", 32)
	require.NoError(t, h.Join(hostUser, hostOut))

	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":1,"y":1,"colour":"red"}`), hostUser)
	accepted := drain(t, hostOut)
	pt := accepted[len(accepted)-1].(*protocol.PlaceToken)
	assert.Equal(t, "0", pt.ID)
	assert.Equal(t, "alice", pt.Controller)

	playerOut := NewOutbox("bob", 32)
	require.NoError(t, h.Join(playerUser, playerOut))
	joined := drain(t, playerOut)
	require.Len(t, joined, 3)
	assert.Equal(t, "alice", joined[0].(*protocol.Connect).Username)
	assert.Equal(t, "0", joined[1].(*protocol.PlaceToken).ID)
	drain(t, hostOut)

	h.Dispatch([]byte(`{"type":"Movement","tokenId":"0","dx":1,"dy":0}`), hostUser)
	for _, out := range []*Outbox{hostOut, playerOut} {
		msgs := drain(t, out)
		require.Len(t, msgs, 1)
		mv := msgs[0].(*protocol.Movement)
		assert.Equal(t, "0", mv.TokenID)
		assert.Equal(t, 1, mv.DX)
	}

	h.Dispatch([]byte(`{"type":"PlaceToken","kind":"orc","x":3,"y":3,"colour":"red"}`), playerUser)
	assert.Empty(t, drain(t, hostOut))
	assert.Empty(t, drain(t, playerOut))

	// The board still has exactly one token, now at (2,1), verified via a
	// fresh joiner's replay.
	h.Leave(playerUser)
	drain(t, hostOut)
	lateOut := NewOutbox("carol", 32)
	require.NoError(t, h.Join(UserInfo{Token: "u-carol", ID: 3, Username: "carol"}, lateOut))
	late := drain(t, lateOut)
	require.Len(t, late, 3)
	replayed := late[1].(*protocol.PlaceToken)
	assert.Equal(t, "0", replayed.ID)
	assert.Equal(t, 2, replayed.X)
	assert.Equal(t, 1, replayed.Y)
}

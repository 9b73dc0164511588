package lobby

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/network"
)

const guestToken = "24f380279d84e2e715f80ed14b1db063"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(config.DefaultConfig(), store, nil)
}

// peer is one side of a lobby connection under test. Frames are written
// and read synchronously over a net.Pipe.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, s *Server) *peer {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	go s.Handle(context.Background(), network.NewConn(server))

	return &peer{t: t, conn: client, r: bufio.NewReader(client)}
}

func (p *peer) send(frame string) {
	p.t.Helper()
	_, err := p.conn.Write(append([]byte(frame), 0))
	require.NoError(p.t, err)
}

func (p *peer) recv() string {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := p.r.ReadBytes(0)
	require.NoError(p.t, err)
	return string(frame[:len(frame)-1])
}

func (p *peer) join(username, password string) string {
	p.t.Helper()
	p.send("<QR_L>~5")
	p.send("<L>~" + username + "~" + password)
	return p.recv()
}

func (p *peer) expectEOF() {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := p.r.ReadBytes(0)
	require.ErrorIs(p.t, err, io.EOF)
}

func TestHelloRejectsUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)
	p := dial(t, s)

	p.send("<QR_L>~4")
	assert.Equal(t, "<S>~<SERVER>~<OLD_SWF>", p.recv())
	p.expectEOF()
}

func TestPolicyFileRequest(t *testing.T) {
	s := newTestServer(t)
	p := dial(t, s)

	p.send("<policy-file-request/>")
	assert.Contains(t, p.recv(), "cross-domain-policy")
}

func TestJoinLobby(t *testing.T) {
	s := newTestServer(t)
	p := dial(t, s)

	state := p.join("alice", "c4ca4238a0b923820dcc509a6f75849b")
	assert.Contains(t, state, "<L>~alice~")
	assert.Equal(t, 1, s.PlayerCount())
}

func TestJoinGuest(t *testing.T) {
	s := newTestServer(t)
	p := dial(t, s)

	state := p.join("turing GUEST", guestToken)
	assert.Contains(t, state, "<L>~turing GUEST~")

	user, err := s.store.GetUserByUsername(context.Background(), "turing GUEST")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsGuest())
}

func TestJoinEmptyPasswordRejected(t *testing.T) {
	s := newTestServer(t)
	p := dial(t, s)

	p.send("<QR_L>~5")
	p.send("<L>~alice~")
	assert.Equal(t, "<L>~<BAD_MEMBER>", p.recv())
	p.expectEOF()
	assert.Equal(t, 0, s.PlayerCount())
}

func TestJoinBadPasswordRejected(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "goodhash")

	p2 := dial(t, s)
	p2.send("<QR_L>~5")
	p2.send("<L>~alice~wronghash")
	assert.Equal(t, "<L>~<BAD_MEMBER>", p2.recv())
	p2.expectEOF()
}

func TestJoinDuplicateRejected(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")

	p2 := dial(t, s)
	p2.send("<QR_L>~5")
	p2.send("<L>~alice~hash")
	assert.Equal(t, "<L>~<DUPLICATE>", p2.recv())
	p2.expectEOF()
	assert.Equal(t, 1, s.PlayerCount())
}

func TestConcurrentJoinsSameAccountTakeOneSlot(t *testing.T) {
	s := newTestServer(t)

	// Registered up front so both logins authenticate against the same
	// stored account instead of racing the auto-registration insert.
	_, err := s.store.CreateMember(context.Background(), "alice", []byte("hash"))
	require.NoError(t, err)

	// Two connections racing to log in as the same account must never
	// both end up in the roster, no matter how the joins interleave.
	for round := 0; round < 25; round++ {
		peers := []*peer{dial(t, s), dial(t, s)}
		replies := make([]string, len(peers))

		var wg sync.WaitGroup
		for i, p := range peers {
			wg.Add(1)
			go func(i int, p *peer) {
				defer wg.Done()
				replies[i] = p.join("alice", "hash")
			}(i, p)
		}
		wg.Wait()

		dupes := 0
		for _, r := range replies {
			if r == "<L>~<DUPLICATE>" {
				dupes++
			}
		}
		require.Equal(t, 1, dupes, "round %d replies %q", round, replies)
		require.Equal(t, 1, s.PlayerCount(), "round %d", round)

		for _, p := range peers {
			p.send("<DISCONNECTED>")
		}
		require.Eventually(t, func() bool { return s.PlayerCount() == 0 },
			2*time.Second, 5*time.Millisecond)
	}
}

func TestRosterBroadcastOnJoin(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")

	p2 := dial(t, s)
	p2.join("bob", "hash")

	// The first client is told about the updated roster.
	state := p1.recv()
	assert.Contains(t, state, "alice")
	assert.Contains(t, state, "bob")
}

func TestChatBroadcast(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")
	p2 := dial(t, s)
	p2.join("bob", "hash")
	p1.recv() // roster update for bob's join

	p1.send("<B>~<CHAT>~0~alice: hello there")

	// Chat is fanned out to every occupied slot, sender included.
	assert.Equal(t, "<B>~<CHAT>~0~alice: hello there", p1.recv())
	assert.Equal(t, "<B>~<CHAT>~0~alice: hello there", p2.recv())
}

func TestSetCommentBroadcastAndPersist(t *testing.T) {
	s := newTestServer(t)

	p := dial(t, s)
	p.join("alice", "hash")

	p.send("<SERVER>~<COMMENT>~0~be right back")
	assert.Equal(t, "<B>~<COMMENT>~0~be right back", p.recv())

	user, err := s.store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	comment, err := s.store.Comment(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "be right back", comment)
}

func TestSetCommentWrongSlotIgnored(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")
	p2 := dial(t, s)
	p2.join("bob", "hash")
	p1.recv()

	// bob (slot 1) claims slot 0, the request must be dropped without
	// any response or broadcast.
	p2.send("<SERVER>~<COMMENT>~0~impostor")

	p2.send("<SERVER>~<ALIVE?>")
	assert.Equal(t, "<S>~<SERVER>~<ALIVE>", p2.recv())
}

func TestChallengeForwarding(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")
	p2 := dial(t, s)
	p2.join("bob", "hash")
	p1.recv()

	// alice (slot 0) challenges bob (slot 1); only bob hears about it.
	p1.send("<S>~1~0~<SHALLWEPLAYAGAME?>")
	assert.Equal(t, "<S>~1~0~<SHALLWEPLAYAGAME?>", p2.recv())

	p1.send("<S>~1~0~<AUTHENTICATION>~deadbeef")
	assert.Equal(t, "<S>~1~0~<AUTHENTICATION>~deadbeef", p2.recv())
}

func TestChallengeUnoccupiedSlotDropped(t *testing.T) {
	s := newTestServer(t)

	p := dial(t, s)
	p.join("alice", "hash")

	p.send("<S>~7~0~<SHALLWEPLAYAGAME?>")

	// The server must not crash or forward anything; a follow-up
	// request still works.
	p.send("<SERVER>~<ALIVE?>")
	assert.Equal(t, "<S>~<SERVER>~<ALIVE>", p.recv())
}

func TestRecentWithNoMatches(t *testing.T) {
	s := newTestServer(t)

	p := dial(t, s)
	p.join("alice", "hash")

	p.send("<SERVER>~<RECENT>")
	assert.Contains(t, p.recv(), "<LAST_LOGGED>~<>~0~")
	assert.Contains(t, p.recv(), "No recent battles# # ")
}

func TestRankingEmpty(t *testing.T) {
	s := newTestServer(t)

	p := dial(t, s)
	p.join("alice", "hash")

	p.send("<SERVER>~<RANKING>~2026~9")
	assert.Equal(t, "<S>~<SERVER>~<RANKING(thisMonth)>", p.recv())
}

func TestDisconnectFreesSlot(t *testing.T) {
	s := newTestServer(t)

	p1 := dial(t, s)
	p1.join("alice", "hash")
	p2 := dial(t, s)
	p2.join("bob", "hash")
	p1.recv()

	p1.send("<DISCONNECTED>")
	p1.expectEOF()

	// The remaining client gets the shrunken roster.
	state := p2.recv()
	assert.NotContains(t, state, "alice")
	assert.Contains(t, state, "bob")
	assert.Equal(t, 1, s.PlayerCount())

	// The departed player shows up in the last-logged answer.
	p2.send("<SERVER>~<RECENT>")
	assert.Contains(t, p2.recv(), "<LAST_LOGGED>~alice~")
	p2.recv() // last played
}

func TestEvictionWhenFull(t *testing.T) {
	s := newTestServer(t)

	// Fill all 13 slots. Every peer drains its pipe after joining so
	// later roster broadcasts cannot block the server.
	for i := 0; i < 13; i++ {
		p := dial(t, s)
		p.join(fmt.Sprintf("player%d", i), "hash")
		go io.Copy(io.Discard, p.conn)
	}
	require.Equal(t, 13, s.PlayerCount())

	// The 14th join evicts the longest resident.
	late := dial(t, s)
	late.join("latecomer", "hash")
	go io.Copy(io.Discard, late.conn)

	assert.False(t, s.UsernameExists("player0"))
	assert.True(t, s.UsernameExists("latecomer"))
	assert.Equal(t, 13, s.PlayerCount())
}

func TestMotdSentOnJoin(t *testing.T) {
	s := newTestServer(t)
	s.cfg.SetLobby(config.LobbyConfig{MOTD: "welcome aboard"})

	p := dial(t, s)
	p.join("alice", "hash")
	assert.Equal(t, "<B>~<CHAT>~~welcome aboard", p.recv())
}

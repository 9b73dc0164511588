package game

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/protocol"
)

// relayedKinds are the in-game actions forwarded verbatim to the bound
// opponent. The server never interprets them; it is a relay.
var relayedKinds = []protocol.Kind{
	protocol.KindGameChat,
	protocol.KindUsePower,
	protocol.KindGrabPiece,
	protocol.KindReleasePiece,
	protocol.KindSwitchPlayer,
	protocol.KindRecursiveDone,
	protocol.KindRemovePlayer,
	protocol.KindPowerNoEffect,
	protocol.KindNuke,
	protocol.KindJumpOnPiece,
	protocol.KindGetPowerSquare,
	protocol.KindSettingsLoaded,
	protocol.KindAssignPowerSquare,
	protocol.KindAssignNextPowerCount,
	protocol.KindNewGridCoord,
	protocol.KindResign,
	protocol.KindSettingsReadyOn,
	protocol.KindSettingsReadyOnAgain,
	protocol.KindSettingsReadyOff,
	protocol.KindSettingsArenaSize,
	protocol.KindSettingsSquadronSize,
	protocol.KindSettingsTimer,
	protocol.KindSettingsTopBottom,
	protocol.KindSettingsColor,
	protocol.KindSwitcheroo,
	protocol.KindRemoveOneWayWall,
	protocol.KindBankruptAction,
}

// Client handles one game-port connection: the join handshake, the
// relay of action frames to the opponent, and stats submission.
type Client struct {
	ctx    context.Context
	conn   *network.Conn
	server *Server
	logger zerolog.Logger

	mu               sync.Mutex
	userID           string
	username         string
	opponentID       string
	opponentUsername string
	guest            bool
	votedVoid        bool
	joined           bool
	opponent         *Client
}

func newClient(ctx context.Context, conn *network.Conn, server *Server) *Client {
	c := &Client{
		ctx:    ctx,
		conn:   conn,
		server: server,
		logger: server.logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		guest:  true,
	}

	conn.On(protocol.KindPolicyFileRequest, c.handlePolicy)
	conn.On(protocol.KindHelloGame, c.handleHello)
	conn.On(protocol.KindJoinGame, c.handleJoin)
	conn.On(protocol.KindServerAlive, c.handleAlive)
	conn.On(protocol.KindServerPing, c.handlePing)
	conn.On(protocol.KindVoidScore, c.handleVoidScore)
	conn.On(protocol.KindAddStats, c.handleAddStats)
	conn.On(protocol.KindDisconnect, c.handleDisconnect)

	for _, kind := range relayedKinds {
		conn.On(kind, c.relay)
	}
	conn.OnRaw("<S>", c.relayRaw)
	return c
}

// UserID returns the persistent identity the client joined with.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Username returns the name the client joined with.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Guest reports whether the client's account is a guest account.
func (c *Client) Guest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guest
}

// VotedVoid reports whether the client asked for the score to be voided.
func (c *Client) VotedVoid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votedVoid
}

// MatchID is the symmetric key pairing this client with its declared
// opponent.
func (c *Client) MatchID() MatchID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewMatchID(c.userID, c.opponentID)
}

func (c *Client) bindOpponent(opponent *Client) {
	c.mu.Lock()
	c.opponent = opponent
	c.mu.Unlock()
}

// Opponent returns the currently bound opponent, or nil.
func (c *Client) Opponent() *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opponent
}

func (c *Client) handlePolicy(protocol.Message) error {
	c.logger.Debug().Msg("policy file requested")
	return c.conn.Send(protocol.CrossDomainPolicy{})
}

func (c *Client) handleHello(protocol.Message) error {
	// The game port hello carries no version to verify.
	return nil
}

func (c *Client) handleJoin(msg protocol.Message) error {
	m := msg.(protocol.JoinGame)

	user, err := c.server.store.GetUserByUsername(c.ctx, m.Username)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to look up joining player")
		return network.ErrStopHandler
	}
	opponent, err := c.server.store.GetUserByUsername(c.ctx, m.OpponentUsername)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to look up opponent")
		return network.ErrStopHandler
	}
	if user == nil || opponent == nil {
		c.logger.Warn().
			Str("username", m.Username).
			Str("opponent", m.OpponentUsername).
			Msg("game join for unknown account")
		return network.ErrStopHandler
	}

	c.mu.Lock()
	c.userID = user.ID
	c.username = m.Username
	c.opponentID = opponent.ID
	c.opponentUsername = m.OpponentUsername
	c.guest = user.IsGuest()
	c.joined = true
	c.mu.Unlock()

	if err := c.server.Register(c); err != nil {
		c.logger.Warn().Err(err).Msg("rejecting extra match party")
		return network.ErrStopHandler
	}

	c.logger.Info().
		Str("username", m.Username).
		Str("opponent", m.OpponentUsername).
		Msg("player joined game")

	return c.conn.Send(protocol.PlayerCount{Count: c.server.PlayerCount()})
}

func (c *Client) handleAlive(protocol.Message) error {
	return c.conn.Send(protocol.GameServerAliveOK{})
}

func (c *Client) handlePing(protocol.Message) error {
	// Deliberately unanswered. Responding desynchronizes the client.
	return nil
}

// relay forwards an action frame to the bound opponent. Without an
// opponent the frame is dropped; there is no buffering or replay.
func (c *Client) relay(msg protocol.Message) error {
	if opp := c.Opponent(); opp != nil {
		opp.conn.Send(msg)
	}
	return nil
}

// relayRaw forwards an action frame the catalog rejected, byte for
// byte. Newer client builds use power names the server does not know;
// the opponent can still interpret them.
func (c *Client) relayRaw(frame []byte) error {
	if opp := c.Opponent(); opp != nil {
		opp.conn.SendRaw(frame)
	}
	return nil
}

func (c *Client) handleVoidScore(protocol.Message) error {
	c.mu.Lock()
	c.votedVoid = true
	opp := c.opponent
	c.mu.Unlock()

	if opp != nil {
		opp.conn.Send(protocol.VoidScoreOK{})
	}
	return nil
}

func (c *Client) handleAddStats(msg protocol.Message) error {
	m := msg.(protocol.AddStats)

	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if !joined {
		return nil
	}

	c.server.SubmitStats(c, Stats{
		OwnPieceCount:      m.OwnPieceCount,
		OpponentPieceCount: m.OpponentPieceCount,
		CycleCounter:       m.CycleCounter,
		GridSize:           m.GridSize,
		SquadronSize:       m.SquadronSize,
	})
	return nil
}

func (c *Client) handleDisconnect(protocol.Message) error {
	c.logger.Debug().Msg("connection closed by client")

	if opp := c.Opponent(); opp != nil {
		opp.conn.Send(protocol.OpponentDead{})
	}

	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if joined {
		c.server.Remove(c)
	}
	return network.ErrStopHandler
}

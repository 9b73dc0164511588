package lobby

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/protocol"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// supportedSwfVersion is the only client build the protocol supports.
const supportedSwfVersion = 5

// Player holds the lobby-visible state of one connected client.
type Player struct {
	UserID   string
	Username string
	Comment  string
	Guest    bool
	JoinedAt time.Time
	Idx      int
}

// Client handles one lobby connection. It decodes requests off the wire,
// talks to the roster and the store, and emits events for the
// notification sinks.
type Client struct {
	ctx    context.Context
	conn   *network.Conn
	server *Server
	logger zerolog.Logger

	mu     sync.Mutex
	player Player
}

func newClient(ctx context.Context, conn *network.Conn, server *Server) *Client {
	c := &Client{
		ctx:    ctx,
		conn:   conn,
		server: server,
		logger: server.logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		player: Player{Idx: -1},
	}

	conn.On(protocol.KindPolicyFileRequest, c.handlePolicy)
	conn.On(protocol.KindHelloLobby, c.handleHello)
	conn.On(protocol.KindJoinLobby, c.handleJoin)
	conn.On(protocol.KindServerRecent, c.handleRecent)
	conn.On(protocol.KindServerRanking, c.handleRanking)
	conn.On(protocol.KindServerAlive, c.handleAlive)
	conn.On(protocol.KindSetComment, c.handleSetComment)
	conn.On(protocol.KindLobbyChat, c.handleChat)
	conn.On(protocol.KindChallenge, c.handleChallenge)
	conn.On(protocol.KindChallengeAuth, c.handleChallengeAuth)
	conn.On(protocol.KindDisconnect, c.handleDisconnect)

	return c
}

// Player returns a snapshot of the client's lobby state.
func (c *Client) Player() Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Client) setIdx(idx int) {
	c.mu.Lock()
	c.player.Idx = idx
	c.mu.Unlock()
}

func (c *Client) handlePolicy(protocol.Message) error {
	c.logger.Debug().Msg("policy file requested")
	return c.conn.Send(protocol.CrossDomainPolicy{})
}

func (c *Client) handleHello(msg protocol.Message) error {
	m := msg.(protocol.HelloLobby)
	if m.SwfVersion != supportedSwfVersion {
		c.logger.Debug().Int("version", m.SwfVersion).Msg("client with unsupported version rejected")
		c.conn.Send(protocol.OldSwf{})
		return network.ErrStopHandler
	}
	return nil
}

func (c *Client) handleJoin(msg protocol.Message) error {
	m := msg.(protocol.JoinLobby)

	if m.Password == "" {
		// A missing password means raw or damaged packets, the real
		// client always sends one.
		c.logger.Debug().Str("username", m.Username).Msg("join without password")
		c.conn.Send(protocol.LobbyBadMember{})
		return network.ErrStopHandler
	}

	guest := util.IsGuestLogin(m.Username, m.Password)
	user, err := c.authenticate(m.Username, m.Password, guest)
	if err != nil || user == nil {
		c.logger.Debug().Err(err).Str("username", m.Username).Msg("authentication failed")
		c.conn.Send(protocol.LobbyBadMember{})
		return network.ErrStopHandler
	}

	comment, err := c.server.store.Comment(c.ctx, user.ID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to load persisted comment")
	}

	c.mu.Lock()
	c.player.UserID = user.ID
	c.player.Username = m.Username
	c.player.Comment = comment
	c.player.Guest = guest
	c.player.JoinedAt = time.Now()
	c.mu.Unlock()

	idx, ok := c.server.AddClient(c)
	if !ok {
		c.logger.Debug().Str("username", m.Username).Msg("duplicate in lobby")
		c.conn.Send(protocol.LobbyDuplicate{})
		return network.ErrStopHandler
	}
	if err := c.conn.Send(c.server.State()); err != nil {
		return err
	}

	if guest {
		c.logger.Info().Str("username", m.Username).Int("slot", idx).Msg("guest joined lobby")
	} else {
		c.logger.Info().Str("username", m.Username).Int("slot", idx).Msg("member joined lobby")
	}

	c.emit(events.EventLobbyJoined, events.LobbyJoinedPayload{
		Username:    m.Username,
		Slot:        idx,
		Guest:       guest,
		PlayerCount: c.server.PlayerCount(),
	})

	if motd := c.server.cfg.GetLobby().MOTD; motd != "" {
		c.conn.Send(protocol.LobbyChat{Idx: "", Text: motd})
	}
	return nil
}

// authenticate resolves the login to a stored user. Guests are created
// on first sight; members go through password verification unless auth
// is disabled entirely.
func (c *Client) authenticate(username, password string, guest bool) (*db.User, error) {
	if guest {
		return c.server.store.AuthenticateGuest(c.ctx, username)
	}

	auth := c.server.cfg.GetAuth()
	if auth.DisableAuth {
		u, err := c.server.store.GetUserByUsername(c.ctx, username)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
		return c.server.store.CreateMember(c.ctx, username, []byte(password))
	}

	u, err := c.server.store.AuthenticateMember(c.ctx, username, []byte(password), auth.AutoRegister)
	if err == db.ErrAuthFailed {
		return nil, nil
	}
	return u, err
}

func (c *Client) handleRecent(protocol.Message) error {
	matches, err := c.server.store.RecentMatches(c.ctx, 15)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load recent matches")
		matches = nil
	}

	results := make([]protocol.GameResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, protocol.GameResult{
			Winner:      m.Winner,
			Loser:       m.Loser,
			WinnerScore: m.WinnerScore,
			LoserScore:  m.LoserScore,
			Started:     m.Started,
			Finished:    m.Finished,
		})
	}

	return c.conn.Send(c.server.LastLogged(), protocol.NewLastPlayed(results))
}

func (c *Client) handleRanking(msg protocol.Message) error {
	m := msg.(protocol.ServerRanking)

	lb := c.server.cfg.GetLeaderboards()
	rows, err := c.server.store.Ranking(c.ctx, m.Year, m.Month, lb.RankedOnly, lb.IncludeVoid)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load ranking")
		rows = nil
	}

	entries := make([]protocol.RankingEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, protocol.RankingEntry{
			Username: r.Username,
			Wins:     r.Wins,
			Games:    r.Games,
		})
	}
	return c.conn.Send(protocol.RankingThisMonth{Entries: entries})
}

func (c *Client) handleAlive(protocol.Message) error {
	return c.conn.Send(protocol.ServerAliveOK{})
}

func (c *Client) handleSetComment(msg protocol.Message) error {
	m := msg.(protocol.SetComment)

	p := c.Player()
	if m.Idx != p.Idx {
		c.logger.Debug().
			Int("expected", p.Idx).
			Int("got", m.Idx).
			Msg("comment for wrong slot, ignoring")
		return nil
	}

	c.mu.Lock()
	c.player.Comment = m.Comment
	c.mu.Unlock()

	if err := c.server.store.SetComment(c.ctx, p.UserID, m.Comment); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist comment")
	}

	c.server.Broadcast(protocol.BroadcastComment{Idx: m.Idx, Comment: m.Comment})
	c.emit(events.EventCommentSet, events.CommentSetPayload{
		Username: p.Username,
		Slot:     p.Idx,
		Comment:  m.Comment,
	})
	return nil
}

func (c *Client) handleChat(msg protocol.Message) error {
	m := msg.(protocol.LobbyChat)
	c.server.Broadcast(m)

	// The wire text is "<name>: <message>"; system lines carrying the
	// (COMMUNIQUE) marker are not worth notifying about.
	text := m.Text
	if _, after, found := strings.Cut(text, ":"); found {
		text = strings.TrimSpace(after)
	}
	if strings.HasPrefix(text, "(COMMUNIQUE)") {
		return nil
	}

	p := c.Player()
	c.emit(events.EventLobbyChat, events.LobbyChatPayload{
		Username: p.Username,
		Slot:     p.Idx,
		Text:     text,
	})
	return nil
}

func (c *Client) handleChallenge(msg protocol.Message) error {
	m := msg.(protocol.Challenge)
	c.logger.Debug().
		Int("challenger", m.ChallengerIdx).
		Int("challenged", m.ChallengedIdx).
		Msg("challenge issued")
	c.server.Challenge(m.ChallengerIdx, m.ChallengedIdx)

	c.emit(events.EventChallenge, events.ChallengePayload{
		Challenger: c.server.ClientName(m.ChallengerIdx),
		Challenged: c.server.ClientName(m.ChallengedIdx),
	})
	return nil
}

func (c *Client) handleChallengeAuth(msg protocol.Message) error {
	m := msg.(protocol.ChallengeAuth)
	c.server.ChallengeAuth(m.ChallengerIdx, m.ChallengedIdx, m.Auth)
	return nil
}

func (c *Client) handleDisconnect(protocol.Message) error {
	c.logger.Debug().Msg("connection closed by client")

	p := c.Player()
	if c.server.RemoveClient(c) {
		c.logger.Info().Str("username", p.Username).Msg("player left lobby")
		c.emit(events.EventLobbyLeft, events.LobbyLeftPayload{
			Username:    p.Username,
			Slot:        p.Idx,
			PlayerCount: c.server.PlayerCount(),
		})
	}
	return network.ErrStopHandler
}

func (c *Client) emit(t events.EventType, payload interface{}) {
	if c.server.bus == nil {
		return
	}
	c.server.bus.Emit(c.ctx, events.Event{Type: t, Source: "lobby", Payload: payload})
}

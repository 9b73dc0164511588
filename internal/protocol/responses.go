package protocol

import (
	"fmt"
	"strconv"
	"time"
)

// crossDomainPolicyXML is served verbatim in response to the Flash
// policy probe.
const crossDomainPolicyXML = `<cross-domain-policy><allow-access-from domain="*" to-ports="*" /></cross-domain-policy>`

// LobbySlots is the fixed number of lobby roster positions. The roster
// wire format always carries exactly this many entries.
const LobbySlots = 13

// playerFieldCount is the number of tokens per roster entry:
// username, comment, score and ten award counters.
const playerFieldCount = 13

// EmptySlotName marks an unoccupied roster entry on the wire.
const EmptySlotName = "<EMPTY>"

// PlayerInfo is one lobby roster entry as it appears on the wire.
type PlayerInfo struct {
	Username string
	Comment  string
	Score    int
	Awards   [10]int
}

// GameResult is one finished match as shown in the recent-battles list.
type GameResult struct {
	Winner      string
	Loser       string
	WinnerScore int
	LoserScore  int
	Started     time.Time
	Finished    time.Time
}

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	Username string
	Wins     int
	Games    int
}

// CrossDomainPolicy answers the Flash policy probe.
type CrossDomainPolicy struct{}

func (CrossDomainPolicy) Kind() Kind     { return KindCrossDomainPolicy }
func (CrossDomainPolicy) Args() []string { return []string{crossDomainPolicyXML} }

// PlayerCount reports the approximate game-server population.
type PlayerCount struct {
	Count int
}

func (PlayerCount) Kind() Kind { return KindPlayerCount }
func (m PlayerCount) Args() []string {
	return []string{"<S>", "<SERVER>", "<PLAYERS_COUNT>", strconv.Itoa(m.Count)}
}

// BroadcastComment tells lobby clients that a slot's status line changed.
type BroadcastComment struct {
	Idx     int
	Comment string
}

func (BroadcastComment) Kind() Kind { return KindBroadcastComment }
func (m BroadcastComment) Args() []string {
	return []string{"<B>", "<COMMENT>", strconv.Itoa(m.Idx), m.Comment}
}

// OldSwf rejects a client running an outdated SWF.
type OldSwf struct{}

func (OldSwf) Kind() Kind     { return KindOldSwf }
func (OldSwf) Args() []string { return []string{"<S>", "<SERVER>", "<OLD_SWF>"} }

// NameTaken answers a username availability check.
type NameTaken struct {
	Taken bool
}

func (NameTaken) Kind() Kind { return KindNameTaken }
func (m NameTaken) Args() []string {
	v := "<NO>"
	if m.Taken {
		v = "<YES>"
	}
	return []string{"<S>", "<SERVER>", "<NAME_TAKEN>", v}
}

// ServerAliveOK answers the lobby keepalive probe.
type ServerAliveOK struct{}

func (ServerAliveOK) Kind() Kind     { return KindServerAliveOK }
func (ServerAliveOK) Args() []string { return []string{"<S>", "<SERVER>", "<ALIVE>"} }

// GameServerAliveOK is the game-port variant of the keepalive answer.
type GameServerAliveOK struct{}

func (GameServerAliveOK) Kind() Kind     { return KindGameServerAliveOK }
func (GameServerAliveOK) Args() []string { return []string{"<SERVER>", "<ALIVE>"} }

// LobbyDuplicate rejects a join whose username already occupies a slot.
type LobbyDuplicate struct{}

func (LobbyDuplicate) Kind() Kind     { return KindLobbyDuplicate }
func (LobbyDuplicate) Args() []string { return []string{"<L>", "<DUPLICATE>"} }

// LobbyBadMember rejects a join with missing or bad credentials.
type LobbyBadMember struct{}

func (LobbyBadMember) Kind() Kind     { return KindLobbyBadMember }
func (LobbyBadMember) Args() []string { return []string{"<L>", "<BAD_MEMBER>"} }

// LastLogged names the player who most recently left the lobby.
type LastLogged struct {
	Username string
	Minutes  int
	Motd     string
}

// NewLastLogged computes the minutes-ago field from the departure time.
func NewLastLogged(username string, at time.Time, motd string) LastLogged {
	return LastLogged{
		Username: username,
		Minutes:  int(time.Since(at).Minutes()),
		Motd:     motd,
	}
}

func (LastLogged) Kind() Kind { return KindLastLogged }
func (m LastLogged) Args() []string {
	return []string{"<S>", "<SERVER>", "<LAST_LOGGED>", m.Username, strconv.Itoa(m.Minutes), m.Motd}
}

// lastPlayedEntries is the fixed number of recent-battle lines.
const lastPlayedEntries = 15

// LastPlayed carries the recent-battles list: always exactly 15 entries,
// padded with blank placeholders and sent in reverse order.
type LastPlayed struct {
	Entries []string
}

// NewLastPlayed serializes up to 15 recent results into wire entries.
func NewLastPlayed(results []GameResult) LastPlayed {
	if len(results) == 0 {
		entries := make([]string, lastPlayedEntries)
		entries[0] = "No recent battles# # "
		for i := 1; i < lastPlayedEntries; i++ {
			entries[i] = " # # "
		}
		return LastPlayed{Entries: reversed(entries)}
	}

	if len(results) > lastPlayedEntries {
		results = results[:lastPlayedEntries]
	}
	entries := make([]string, 0, lastPlayedEntries)
	for _, r := range results {
		d := r.Finished.Sub(r.Started)
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		entries = append(entries, fmt.Sprintf(
			"%s beat %s#%d-%d#%d:%02d",
			r.Winner, r.Loser, r.WinnerScore, r.LoserScore, mins, secs))
	}
	for len(entries) < lastPlayedEntries {
		entries = append(entries, " # # ")
	}
	return LastPlayed{Entries: reversed(entries)}
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func (LastPlayed) Kind() Kind { return KindLastPlayed }
func (m LastPlayed) Args() []string {
	args := make([]string, 0, 3+len(m.Entries))
	args = append(args, "<S>", "<SERVER>", "<LAST_PLAYED>")
	args = append(args, m.Entries...)
	return args
}

// RankingThisMonth carries the monthly leaderboard, capped at 100 rows.
type RankingThisMonth struct {
	Entries []RankingEntry
}

func (RankingThisMonth) Kind() Kind { return KindRankingThisMonth }
func (m RankingThisMonth) Args() []string {
	entries := m.Entries
	if len(entries) > 100 {
		entries = entries[:100]
	}
	args := make([]string, 0, 3+3*len(entries))
	args = append(args, "<S>", "<SERVER>", "<RANKING(thisMonth)>")
	for _, e := range entries {
		args = append(args, e.Username, strconv.Itoa(e.Wins), strconv.Itoa(e.Games))
	}
	return args
}

// LobbyState is the full roster snapshot: exactly 13 entries, free slots
// serialized as <EMPTY> placeholder records. The fixed width is a wire
// contract with the client.
type LobbyState struct {
	Players []PlayerInfo
}

// NewLobbyState builds a roster snapshot; nil entries become placeholders
// and the list is truncated or padded to exactly 13 slots.
func NewLobbyState(players []*PlayerInfo) LobbyState {
	out := make([]PlayerInfo, LobbySlots)
	for i := range out {
		if i < len(players) && players[i] != nil {
			out[i] = *players[i]
		} else {
			out[i] = PlayerInfo{Username: EmptySlotName}
		}
	}
	return LobbyState{Players: out}
}

func (LobbyState) Kind() Kind { return KindLobbyState }
func (m LobbyState) Args() []string {
	args := make([]string, 0, 1+LobbySlots*playerFieldCount)
	args = append(args, "<L>")
	for i := 0; i < LobbySlots; i++ {
		p := PlayerInfo{Username: EmptySlotName}
		if i < len(m.Players) {
			p = m.Players[i]
		}
		args = append(args, p.Username, p.Comment, strconv.Itoa(p.Score))
		for _, a := range p.Awards {
			args = append(args, strconv.Itoa(a))
		}
	}
	return args
}

// OpponentDead tells a game client that its opponent disconnected.
type OpponentDead struct{}

func (OpponentDead) Kind() Kind     { return KindOpponentDead }
func (OpponentDead) Args() []string { return []string{"<S>", "<SERVER>", "<OPPDEAD>"} }

// VoidScoreOK relays a void-score vote to the opponent.
type VoidScoreOK struct{}

func (VoidScoreOK) Kind() Kind     { return KindVoidScoreOK }
func (VoidScoreOK) Args() []string { return []string{"<S>", "<SERVER>", "<VOID>"} }

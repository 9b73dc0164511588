package protocol

import "strconv"

// Disconnect is a synthetic frame injected by the connection reader when
// the peer goes away; it never travels on the wire from a real client.
type Disconnect struct{}

func (Disconnect) Kind() Kind     { return KindDisconnect }
func (Disconnect) Args() []string { return []string{"<DISCONNECTED>"} }

// PolicyFileRequest is the Flash cross-domain policy probe.
type PolicyFileRequest struct{}

func (PolicyFileRequest) Kind() Kind     { return KindPolicyFileRequest }
func (PolicyFileRequest) Args() []string { return []string{"<policy-file-request/>"} }

// HelloLobby announces a client on the lobby port, carrying the SWF
// client version.
type HelloLobby struct {
	SwfVersion int
}

func (HelloLobby) Kind() Kind { return KindHelloLobby }
func (m HelloLobby) Args() []string {
	return []string{"<QR_L>", strconv.Itoa(m.SwfVersion)}
}

// JoinLobby carries the lobby login credentials. The password is a hash
// computed client-side, never plaintext.
type JoinLobby struct {
	Username string
	Password string
}

func (JoinLobby) Kind() Kind { return KindJoinLobby }
func (m JoinLobby) Args() []string {
	return []string{"<L>", m.Username, m.Password}
}

// HelloGame announces a client on the game port.
type HelloGame struct{}

func (HelloGame) Kind() Kind     { return KindHelloGame }
func (HelloGame) Args() []string { return []string{"<QR_G>"} }

// JoinGame carries the game-port handshake. It shares the <L> literal
// with JoinLobby and is disambiguated purely by field count.
type JoinGame struct {
	Username         string
	Auth             string
	OpponentUsername string
	OpponentAuth     string
	Password         string
}

func (JoinGame) Kind() Kind { return KindJoinGame }
func (m JoinGame) Args() []string {
	return []string{"<L>", m.Username, m.Auth, m.OpponentUsername, m.OpponentAuth, m.Password}
}

// ServerRecent asks for the recent-matches list and last-logged info.
type ServerRecent struct{}

func (ServerRecent) Kind() Kind     { return KindServerRecent }
func (ServerRecent) Args() []string { return []string{"<SERVER>", "<RECENT>"} }

// ServerRanking asks for the leaderboard of a given month.
type ServerRanking struct {
	Year  int
	Month int
}

func (ServerRanking) Kind() Kind { return KindServerRanking }
func (m ServerRanking) Args() []string {
	return []string{"<SERVER>", "<RANKING>", strconv.Itoa(m.Year), strconv.Itoa(m.Month)}
}

// ServerAlive is a lobby keepalive probe.
type ServerAlive struct{}

func (ServerAlive) Kind() Kind     { return KindServerAlive }
func (ServerAlive) Args() []string { return []string{"<SERVER>", "<ALIVE?>"} }

// ServerPing is sent on the game port. It is deliberately left
// unanswered; responding desynchronizes the client.
type ServerPing struct{}

func (ServerPing) Kind() Kind     { return KindServerPing }
func (ServerPing) Args() []string { return []string{"<SERVER>", "<PING>"} }

// SetComment updates the free-text status line of a lobby slot.
type SetComment struct {
	Idx     int
	Comment string
}

func (SetComment) Kind() Kind { return KindSetComment }
func (m SetComment) Args() []string {
	return []string{"<SERVER>", "<COMMENT>", strconv.Itoa(m.Idx), m.Comment}
}

// AddStats submits the end-of-match statistics of one party.
type AddStats struct {
	OwnPieceCount      int
	OpponentPieceCount int
	CycleCounter       int
	GridSize           string
	SquadronSize       string
}

func (AddStats) Kind() Kind { return KindAddStats }
func (m AddStats) Args() []string {
	return []string{
		"<SERVER>", "<STATS>",
		strconv.Itoa(m.OwnPieceCount),
		strconv.Itoa(m.OpponentPieceCount),
		strconv.Itoa(m.CycleCounter),
		m.GridSize,
		m.SquadronSize,
	}
}

// VoidScore flags the sender's side of the match as abandoned.
type VoidScore struct{}

func (VoidScore) Kind() Kind     { return KindVoidScore }
func (VoidScore) Args() []string { return []string{"<SERVER>", "<VOID>"} }

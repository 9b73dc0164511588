package protocol

import "strconv"

// In-game action messages travel both ways: a client sends one and the
// server relays it verbatim to the opponent. "Request" and "response"
// are just directions of travel, not separate types.

// UsePower activates an orb power on a piece, with an optional trailing
// argument whose meaning depends on the power.
type UsePower struct {
	Power  string
	Piece  int
	Arg    string
	HasArg bool
}

func (UsePower) Kind() Kind { return KindUsePower }
func (m UsePower) Args() []string {
	args := []string{"<S>", "<USE_POWER>", m.Power, strconv.Itoa(m.Piece)}
	if m.HasArg {
		args = append(args, m.Arg)
	}
	return args
}

// GameChat is an in-game chat line.
type GameChat struct {
	Text string
}

func (GameChat) Kind() Kind     { return KindGameChat }
func (m GameChat) Args() []string { return []string{"<S>", "<CHAT>", m.Text} }

// LobbyChat is a lobby chat line, fanned out to every occupied slot.
// Idx is the sender's slot, or empty for server-originated lines such
// as the MOTD.
type LobbyChat struct {
	Idx  string
	Text string
}

func (LobbyChat) Kind() Kind     { return KindLobbyChat }
func (m LobbyChat) Args() []string { return []string{"<B>", "<CHAT>", m.Idx, m.Text} }

// GrabPiece reports that a piece was picked up.
type GrabPiece struct {
	Piece int
}

func (GrabPiece) Kind() Kind { return KindGrabPiece }
func (m GrabPiece) Args() []string {
	return []string{"<S>", "<GRAB_PIECE>", strconv.Itoa(m.Piece)}
}

// ReleasePiece reports that a piece was put down.
type ReleasePiece struct {
	Piece int
}

func (ReleasePiece) Kind() Kind { return KindReleasePiece }
func (m ReleasePiece) Args() []string {
	return []string{"<S>", "<RELEASE_PIECE>", strconv.Itoa(m.Piece)}
}

// SwitchPlayer passes the turn.
type SwitchPlayer struct {
	Piece int
}

func (SwitchPlayer) Kind() Kind { return KindSwitchPlayer }
func (m SwitchPlayer) Args() []string {
	return []string{"<S>", "<SWITCH_PLAYER>", strconv.Itoa(m.Piece)}
}

// RecursiveDone ends a recursive-power sequence.
type RecursiveDone struct {
	Piece int
}

func (RecursiveDone) Kind() Kind { return KindRecursiveDone }
func (m RecursiveDone) Args() []string {
	return []string{"<S>", "<RECURSIVE_DONE>", strconv.Itoa(m.Piece)}
}

// RemovePlayer removes a piece from the board.
type RemovePlayer struct {
	Piece int
}

func (RemovePlayer) Kind() Kind { return KindRemovePlayer }
func (m RemovePlayer) Args() []string {
	return []string{"<S>", "<REMOVE_PLAYER>", strconv.Itoa(m.Piece)}
}

// PowerNoEffect reports that a power had no effect on the opponent.
type PowerNoEffect struct {
	PowerID int
}

func (PowerNoEffect) Kind() Kind { return KindPowerNoEffect }
func (m PowerNoEffect) Args() []string {
	return []string{"<S>", "<NO_EFFECT_OPP>", strconv.Itoa(m.PowerID)}
}

// Nuke is the board-clearing animation trigger.
type Nuke struct{}

func (Nuke) Kind() Kind     { return KindNuke }
func (Nuke) Args() []string { return []string{"<S>", "<NUKE>"} }

// Resign concedes the match.
type Resign struct{}

func (Resign) Kind() Kind     { return KindResign }
func (Resign) Args() []string { return []string{"<S>", "<SETTINGS>", "<RESIGN>"} }

// JumpOnPiece is the capture animation.
type JumpOnPiece struct {
	Piece       int
	TargetPiece int
}

func (JumpOnPiece) Kind() Kind { return KindJumpOnPiece }
func (m JumpOnPiece) Args() []string {
	return []string{"<S>", "<JUMP_ON_PIECE_ANIMATION>", strconv.Itoa(m.Piece), strconv.Itoa(m.TargetPiece)}
}

// GetPowerSquare claims the power orb on a square.
type GetPowerSquare struct {
	SquarePiece int
	PlayerPiece int
}

func (GetPowerSquare) Kind() Kind { return KindGetPowerSquare }
func (m GetPowerSquare) Args() []string {
	return []string{"<S>", "<GET_POWER_SQUARE>", strconv.Itoa(m.SquarePiece), strconv.Itoa(m.PlayerPiece)}
}

// SettingsLoaded acknowledges the settings screen with its version.
type SettingsLoaded struct {
	Version int
}

func (SettingsLoaded) Kind() Kind { return KindSettingsLoaded }
func (m SettingsLoaded) Args() []string {
	return []string{"<S>", "<SETTINGS>", "<LOADED>", strconv.Itoa(m.Version)}
}

// AssignPowerSquare places a power orb on a square.
type AssignPowerSquare struct {
	PowerID int
	Piece   int
}

func (AssignPowerSquare) Kind() Kind { return KindAssignPowerSquare }
func (m AssignPowerSquare) Args() []string {
	return []string{"<S>", "<ASSIGN_POWER_SQUARE>", strconv.Itoa(m.PowerID), strconv.Itoa(m.Piece)}
}

// AssignNextPowerCount negotiates the next power-spawn counter.
type AssignNextPowerCount struct {
	Count int
}

func (AssignNextPowerCount) Kind() Kind { return KindAssignNextPowerCount }
func (m AssignNextPowerCount) Args() []string {
	return []string{"<S>", "<ASSIGN_NEXT_POWER_COUNT>", strconv.Itoa(m.Count)}
}

// NewGridCoord moves a piece to a new grid position.
type NewGridCoord struct {
	Piece  int
	Column int
	Row    int
	Step   int
}

func (NewGridCoord) Kind() Kind { return KindNewGridCoord }
func (m NewGridCoord) Args() []string {
	return []string{
		"<S>", "<NEW_GRID_CORD>",
		strconv.Itoa(m.Piece), strconv.Itoa(m.Column), strconv.Itoa(m.Row), strconv.Itoa(m.Step),
	}
}

// Challenge invites another lobby slot to a game. The slot indices sit
// between the literal tokens, so the prefix uses wildcards there.
type Challenge struct {
	ChallengedIdx int
	ChallengerIdx int
}

func (Challenge) Kind() Kind { return KindChallenge }
func (m Challenge) Args() []string {
	return []string{"<S>", strconv.Itoa(m.ChallengedIdx), strconv.Itoa(m.ChallengerIdx), "<SHALLWEPLAYAGAME?>"}
}

// ChallengeAuth continues the challenge handshake with a client-side
// opaque token.
type ChallengeAuth struct {
	ChallengedIdx int
	ChallengerIdx int
	Auth          string
}

func (ChallengeAuth) Kind() Kind { return KindChallengeAuth }
func (m ChallengeAuth) Args() []string {
	return []string{"<S>", strconv.Itoa(m.ChallengedIdx), strconv.Itoa(m.ChallengerIdx), "<AUTHENTICATION>", m.Auth}
}

// SettingsReadyOff retracts a ready state during settings negotiation.
type SettingsReadyOff struct{}

func (SettingsReadyOff) Kind() Kind     { return KindSettingsReadyOff }
func (SettingsReadyOff) Args() []string { return []string{"<S>", "<SETTINGS>", "<READY_OFF>"} }

var validArenaSizes = map[string]struct{}{
	"small": {}, "medium": {}, "9x9": {}, "large": {}, "extraLarge": {},
}

// SettingsArenaSize proposes a grid size.
type SettingsArenaSize struct {
	Size string
}

func (SettingsArenaSize) Kind() Kind { return KindSettingsArenaSize }
func (m SettingsArenaSize) Args() []string {
	return []string{"<S>", "<SETTINGS>", "<ARENA_SIZE>", m.Size}
}

var validSquadronSizes = map[string]struct{}{
	"small": {}, "medium": {}, "large": {}, "extraLarge": {},
}

// SettingsSquadronSize proposes a squadron size.
type SettingsSquadronSize struct {
	Size string
}

func (SettingsSquadronSize) Kind() Kind { return KindSettingsSquadronSize }
func (m SettingsSquadronSize) Args() []string {
	return []string{"<S>", "<SETTINGS>", "<SQUADRON_SIZE>", m.Size}
}

var validTimerValues = map[int]struct{}{
	240000: {}, 120000: {}, 60000: {}, 30000: {}, 15000: {}, 500000000: {},
}

// SettingsTimer proposes a turn timer in milliseconds.
type SettingsTimer struct {
	Time int
}

func (SettingsTimer) Kind() Kind { return KindSettingsTimer }
func (m SettingsTimer) Args() []string {
	return []string{"<S>", "<SETTINGS>", "<TIMER>", strconv.Itoa(m.Time)}
}

// SettingsTopBottom proposes top/bottom vs corner placement.
type SettingsTopBottom struct {
	TopBottom bool
}

func (SettingsTopBottom) Kind() Kind { return KindSettingsTopBottom }
func (m SettingsTopBottom) Args() []string {
	v := "false"
	if m.TopBottom {
		v = "true"
	}
	return []string{"<S>", "<SETTINGS>", "<TOP_BOTTOM>", v}
}

// SettingsColor announces the sender's decoration and text colors.
type SettingsColor struct {
	DecorationColor int
	TextColor       string
}

func (SettingsColor) Kind() Kind { return KindSettingsColor }
func (m SettingsColor) Args() []string {
	return []string{"<S>", "<SETTINGS>", "<COLOR>", strconv.Itoa(m.DecorationColor), m.TextColor}
}

// SettingsReadyOn signals readiness with the negotiated settings.
type SettingsReadyOn struct {
	GridSize        int
	PlayerSize      int
	DecorationColor int
	TextColor       string
}

func (SettingsReadyOn) Kind() Kind { return KindSettingsReadyOn }
func (m SettingsReadyOn) Args() []string {
	return []string{
		"<S>", "<SETTINGS>", "<READY_ON>",
		strconv.Itoa(m.GridSize), strconv.Itoa(m.PlayerSize), strconv.Itoa(m.DecorationColor), m.TextColor,
	}
}

// SettingsReadyOnAgain re-confirms readiness for a rematch. Same prefix
// as SettingsReadyOn, shorter arity.
type SettingsReadyOnAgain struct{}

func (SettingsReadyOnAgain) Kind() Kind     { return KindSettingsReadyOnAgain }
func (SettingsReadyOnAgain) Args() []string { return []string{"<S>", "<SETTINGS>", "<READY_ON>"} }

// Switcheroo swaps a piece with an occupying one.
type Switcheroo struct {
	Piece     int
	OldColumn int
	OldRow    int
	Occupier  int
}

func (Switcheroo) Kind() Kind { return KindSwitcheroo }
func (m Switcheroo) Args() []string {
	return []string{
		"<S>", "<SWITCHEROO>",
		strconv.Itoa(m.Piece), strconv.Itoa(m.OldColumn), strconv.Itoa(m.OldRow), strconv.Itoa(m.Occupier),
	}
}

// RemoveOneWayWall tears down a one-way wall.
type RemoveOneWayWall struct {
	Wall  int
	Piece int
}

func (RemoveOneWayWall) Kind() Kind { return KindRemoveOneWayWall }
func (m RemoveOneWayWall) Args() []string {
	return []string{"<S>", "<REMOVE_ONEWAY_WALL>", strconv.Itoa(m.Wall), strconv.Itoa(m.Piece)}
}

// BankruptAction plays the bankrupt animation for a player.
type BankruptAction struct {
	PlayerIndex int
}

func (BankruptAction) Kind() Kind { return KindBankruptAction }
func (m BankruptAction) Args() []string {
	return []string{"<S>", "<BR_ANIMATION>", strconv.Itoa(m.PlayerIndex)}
}

// Package protocol implements the text wire protocol spoken by the legacy
// Flash client: tilde-delimited string fields in NUL-terminated frames.
// Each message kind declares a literal (or wildcard) prefix and a set of
// accepted field counts; decoding walks the catalog in registration order
// and returns the first match.
package protocol

import (
	"strings"
	"unicode/utf8"
)

// Delim separates fields within a frame.
const Delim = '~'

// Terminator ends a frame on the wire.
const Terminator = byte(0)

// Kind identifies a concrete message type.
type Kind int

const (
	KindInvalid Kind = iota
	KindDisconnect
	KindPolicyFileRequest
	KindHelloLobby
	KindJoinLobby
	KindHelloGame
	KindJoinGame
	KindSetComment
	KindGameChat
	KindLobbyChat
	KindUsePower
	KindServerRecent
	KindServerRanking
	KindServerAlive
	KindServerPing
	KindCrossDomainPolicy
	KindPlayerCount
	KindBroadcastComment
	KindOldSwf
	KindNameTaken
	KindServerAliveOK
	KindGameServerAliveOK
	KindLobbyDuplicate
	KindLobbyBadMember
	KindLastLogged
	KindLastPlayed
	KindRankingThisMonth
	KindLobbyState
	KindOpponentDead
	KindVoidScoreOK
	KindGrabPiece
	KindReleasePiece
	KindSwitchPlayer
	KindRecursiveDone
	KindRemovePlayer
	KindPowerNoEffect
	KindNuke
	KindResign
	KindJumpOnPiece
	KindGetPowerSquare
	KindSettingsLoaded
	KindAssignPowerSquare
	KindAssignNextPowerCount
	KindNewGridCoord
	KindChallenge
	KindChallengeAuth
	KindSettingsReadyOff
	KindSettingsArenaSize
	KindSettingsSquadronSize
	KindSettingsTimer
	KindSettingsTopBottom
	KindSettingsColor
	KindSettingsReadyOn
	KindSettingsReadyOnAgain
	KindSwitcheroo
	KindRemoveOneWayWall
	KindBankruptAction
	KindVoidScore
	KindAddStats
)

// Message is a decoded protocol frame. Args returns the full field
// sequence including the prefix literals.
type Message interface {
	Kind() Kind
	Args() []string
}

// anyToken marks a wildcard position in a descriptor prefix; it matches
// any field value.
const anyToken = ""

// argcAny accepts any field count (used by variable-length responses).
const argcAny = -1

type descriptor struct {
	kind   Kind
	prefix []string
	argc   []int
	decode func(args []string) (Message, error)
}

func (d *descriptor) matches(args []string) bool {
	ok := false
	for _, n := range d.argc {
		if n == argcAny || n == len(args) {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	if len(args) < len(d.prefix) {
		return false
	}
	for i, p := range d.prefix {
		if p != anyToken && p != args[i] {
			return false
		}
	}
	return true
}

// Decode parses a single frame (without the trailing NUL) into a typed
// message. It is total: malformed or unrecognized input yields nil,
// never an error. When a frame structurally matches a descriptor but
// fails semantic validation (bad enum value, non-numeric field), the
// result is nil as well; callers log and drop such frames.
func Decode(frame []byte) Message {
	args := strings.Split(decodeASCII(frame), string(Delim))
	for i := range catalog {
		d := &catalog[i]
		if !d.matches(args) {
			continue
		}
		m, err := d.decode(args)
		if err != nil {
			return nil
		}
		return m
	}
	return nil
}

// Encode serializes a message into a wire frame, NUL terminator included.
// Fields must not contain the delimiter or embedded NULs; this is the
// caller's obligation and is not checked here.
func Encode(m Message) []byte {
	joined := strings.Join(m.Args(), string(Delim))
	buf := make([]byte, 0, len(joined)+1)
	buf = append(buf, encodeASCII(joined)...)
	buf = append(buf, Terminator)
	return buf
}

// decodeASCII converts raw frame bytes to a string, replacing non-ASCII
// bytes instead of failing the whole frame.
func decodeASCII(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c < utf8.RuneSelf {
			b.WriteByte(c)
		} else {
			b.WriteRune(utf8.RuneError)
		}
	}
	return b.String()
}

// encodeASCII replaces non-ASCII runes with '?' so the legacy client
// never sees multi-byte sequences.
func encodeASCII(s string) []byte {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			buf = append(buf, byte(r))
		} else {
			buf = append(buf, '?')
		}
	}
	return buf
}

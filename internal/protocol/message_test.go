package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(s string) Message {
	return Decode([]byte(s))
}

func TestDecodeHandshakes(t *testing.T) {
	require.Equal(t, HelloGame{}, decodeString("<QR_G>"))
	require.Nil(t, decodeString("<QR_G>~2"))

	require.Equal(t, HelloLobby{SwfVersion: 5}, decodeString("<QR_L>~5"))
	require.Nil(t, decodeString("<QR_L>"))
	require.Nil(t, decodeString("<QR_L>~abc"))
}

func TestDecodeJoinByFieldCount(t *testing.T) {
	// <L> carries three different kinds depending on arity alone.
	msg := decodeString("<L>~a~b")
	require.Equal(t, JoinLobby{Username: "a", Password: "b"}, msg)

	msg = decodeString("<L>~1~2~3~4~5")
	require.Equal(t, JoinGame{
		Username:         "1",
		Auth:             "2",
		OpponentUsername: "3",
		OpponentAuth:     "4",
		Password:         "5",
	}, msg)

	require.Nil(t, decodeString("<L>~1"))
	require.Nil(t, decodeString("<L>~1~2~3~4"))
	require.Nil(t, decodeString("<L>~1~2~3~4~5~6"))
}

func TestDecodeChat(t *testing.T) {
	require.Equal(t, GameChat{Text: "xyz"}, decodeString("<S>~<CHAT>~xyz"))
	require.Nil(t, decodeString("<S>~<CHAT>"))
	require.Nil(t, decodeString("<S>~<CHAT>~a~b"))

	require.Equal(t, LobbyChat{Idx: "3", Text: "hello"}, decodeString("<B>~<CHAT>~3~hello"))
	require.Nil(t, decodeString("<B>~<CHAT>~x~hello"))
}

func TestDecodeUsePower(t *testing.T) {
	msg := decodeString("<S>~<USE_POWER>~MOAT~3")
	require.Equal(t, UsePower{Power: "MOAT", Piece: 3}, msg)

	msg = decodeString("<S>~<USE_POWER>~TEACH~3~7")
	require.Equal(t, UsePower{Power: "TEACH", Piece: 3, Arg: "7", HasArg: true}, msg)

	require.Nil(t, decodeString("<S>~<USE_POWER>~UNKNOWN_POWER~3"))
	require.Nil(t, decodeString("<S>~<USE_POWER>~MOAT~x"))
}

func TestDecodeServerRequests(t *testing.T) {
	require.Equal(t, ServerRecent{}, decodeString("<SERVER>~<RECENT>"))
	require.Nil(t, decodeString("<SERVER>~<RECENT>~a"))

	require.Equal(t, ServerRanking{Year: 2007, Month: 6}, decodeString("<SERVER>~<RANKING>~2007~6"))
	require.Nil(t, decodeString("<SERVER>~<RANKING>~1"))
	require.Nil(t, decodeString("<SERVER>~<RANKING>~1~a"))
	require.Nil(t, decodeString("<SERVER>~<RANKING>~~a"))

	require.Equal(t, ServerAlive{}, decodeString("<SERVER>~<ALIVE?>"))
	require.Equal(t, ServerPing{}, decodeString("<SERVER>~<PING>"))
	require.Equal(t, VoidScore{}, decodeString("<SERVER>~<VOID>"))
	require.Equal(t, VoidScoreOK{}, decodeString("<S>~<SERVER>~<VOID>"))
}

func TestDecodeChallengeWildcards(t *testing.T) {
	msg := decodeString("<S>~1~2~<SHALLWEPLAYAGAME?>")
	require.Equal(t, Challenge{ChallengedIdx: 1, ChallengerIdx: 2}, msg)

	msg = decodeString("<S>~4~0~<AUTHENTICATION>~deadbeef")
	require.Equal(t, ChallengeAuth{ChallengedIdx: 4, ChallengerIdx: 0, Auth: "deadbeef"}, msg)

	require.Nil(t, decodeString("<S>~x~2~<SHALLWEPLAYAGAME?>"))
}

func TestDecodeSettings(t *testing.T) {
	require.Equal(t, SettingsArenaSize{Size: "9x9"}, decodeString("<S>~<SETTINGS>~<ARENA_SIZE>~9x9"))
	require.Nil(t, decodeString("<S>~<SETTINGS>~<ARENA_SIZE>~huge"))

	require.Equal(t, SettingsSquadronSize{Size: "large"}, decodeString("<S>~<SETTINGS>~<SQUADRON_SIZE>~large"))
	require.Nil(t, decodeString("<S>~<SETTINGS>~<SQUADRON_SIZE>~9x9"))

	require.Equal(t, SettingsTimer{Time: 60000}, decodeString("<S>~<SETTINGS>~<TIMER>~60000"))
	require.Nil(t, decodeString("<S>~<SETTINGS>~<TIMER>~999"))

	require.Equal(t, SettingsTopBottom{TopBottom: true}, decodeString("<S>~<SETTINGS>~<TOP_BOTTOM>~true"))
	require.Equal(t, SettingsTopBottom{TopBottom: false}, decodeString("<S>~<SETTINGS>~<TOP_BOTTOM>~sideways"))

	// READY_ON resolves by arity: full settings at 7 fields, the
	// rematch re-confirmation at 3.
	msg := decodeString("<S>~<SETTINGS>~<READY_ON>~9~10~255~0xFFFFFF")
	require.Equal(t, SettingsReadyOn{GridSize: 9, PlayerSize: 10, DecorationColor: 255, TextColor: "0xFFFFFF"}, msg)
	require.Equal(t, SettingsReadyOnAgain{}, decodeString("<S>~<SETTINGS>~<READY_ON>"))
	require.Equal(t, SettingsReadyOff{}, decodeString("<S>~<SETTINGS>~<READY_OFF>"))
	require.Equal(t, Resign{}, decodeString("<S>~<SETTINGS>~<RESIGN>"))
}

func TestDecodePieceActions(t *testing.T) {
	require.Equal(t, GrabPiece{Piece: 7}, decodeString("<S>~<GRAB_PIECE>~7"))
	require.Equal(t, ReleasePiece{Piece: 7}, decodeString("<S>~<RELEASE_PIECE>~7"))
	require.Equal(t, SwitchPlayer{Piece: 1}, decodeString("<S>~<SWITCH_PLAYER>~1"))
	require.Equal(t, Nuke{}, decodeString("<S>~<NUKE>"))
	require.Equal(t, NewGridCoord{Piece: 3, Column: 4, Row: 5, Step: 1},
		decodeString("<S>~<NEW_GRID_CORD>~3~4~5~1"))
	require.Equal(t, Switcheroo{Piece: 1, OldColumn: 2, OldRow: 3, Occupier: 4},
		decodeString("<S>~<SWITCHEROO>~1~2~3~4"))
	require.Nil(t, decodeString("<S>~<GRAB_PIECE>~x"))
}

func TestDecodeAddStats(t *testing.T) {
	msg := decodeString("<SERVER>~<STATS>~8~2~150~medium~small")
	require.Equal(t, AddStats{
		OwnPieceCount:      8,
		OpponentPieceCount: 2,
		CycleCounter:       150,
		GridSize:           "medium",
		SquadronSize:       "small",
	}, msg)
	require.Nil(t, decodeString("<SERVER>~<STATS>~8~2~x~medium~small"))
}

func TestDecodeNonASCIIReplaced(t *testing.T) {
	msg := Decode([]byte("<S>~<CHAT>~caf\xe9"))
	require.NotNil(t, msg)
	chat, ok := msg.(GameChat)
	require.True(t, ok)
	assert.Equal(t, "caf�", chat.Text)
}

func TestDecodeUnknownFrame(t *testing.T) {
	require.Nil(t, decodeString(""))
	require.Nil(t, decodeString("garbage"))
	require.Nil(t, decodeString("<S>~<NO_SUCH_THING>~1"))
}

func TestEncodeTerminatesWithNul(t *testing.T) {
	data := Encode(ServerAliveOK{})
	require.Equal(t, []byte("<S>~<SERVER>~<ALIVE>\x00"), data)
}

func TestEncodeNonASCIIReplaced(t *testing.T) {
	data := Encode(GameChat{Text: "café"})
	require.Equal(t, []byte("<S>~<CHAT>~caf?\x00"), data)
}

func TestRoundTrip(t *testing.T) {
	for _, msg := range []Message{
		HelloLobby{SwfVersion: 5},
		JoinLobby{Username: "john", Password: "c0ffee"},
		JoinGame{Username: "a", Auth: "1", OpponentUsername: "b", OpponentAuth: "2", Password: "p"},
		SetComment{Idx: 3, Comment: "brb"},
		GameChat{Text: "gg"},
		LobbyChat{Idx: "0", Text: "hi all"},
		UsePower{Power: "SWAP", Piece: 12},
		UsePower{Power: "TEACH_ROW", Piece: 2, Arg: "5", HasArg: true},
		Challenge{ChallengedIdx: 2, ChallengerIdx: 9},
		ChallengeAuth{ChallengedIdx: 2, ChallengerIdx: 9, Auth: "tok"},
		SettingsColor{DecorationColor: 3, TextColor: "0x00FF00"},
		AddStats{OwnPieceCount: 10, OpponentPieceCount: 0, CycleCounter: 42, GridSize: "small", SquadronSize: "large"},
		BroadcastComment{Idx: 1, Comment: "afk"},
		PlayerCount{Count: 4},
		NameTaken{Taken: true},
		OpponentDead{},
	} {
		data := Encode(msg)
		require.Equal(t, Terminator, data[len(data)-1])
		decoded := Decode(data[:len(data)-1])
		require.Equal(t, msg, decoded, "round trip of %T", msg)
	}
}

func TestLobbyStateAlwaysThirteenSlots(t *testing.T) {
	state := NewLobbyState(nil)
	args := state.Args()
	require.Len(t, args, 1+LobbySlots*playerFieldCount)
	for _, p := range state.Players {
		assert.Equal(t, EmptySlotName, p.Username)
	}

	occupant := &PlayerInfo{Username: "john", Comment: "hi", Score: 12}
	state = NewLobbyState([]*PlayerInfo{occupant, nil, occupant})
	require.Len(t, state.Players, LobbySlots)
	assert.Equal(t, "john", state.Players[0].Username)
	assert.Equal(t, EmptySlotName, state.Players[1].Username)
	assert.Equal(t, "john", state.Players[2].Username)

	// Full roster survives the wire.
	decoded := Decode(Encode(state)[:len(Encode(state))-1])
	require.IsType(t, LobbyState{}, decoded)
	require.Equal(t, state.Players, decoded.(LobbyState).Players)
}

func TestLastPlayedFormatting(t *testing.T) {
	start := time.Date(2007, 6, 1, 9, 10, 31, 0, time.UTC)
	finish := start.Add(5*time.Minute + 1*time.Second)
	msg := NewLastPlayed([]GameResult{
		{Winner: "a", Loser: "b", WinnerScore: 7, LoserScore: 0, Started: start, Finished: finish},
		{Winner: "c", Loser: "d", WinnerScore: 8, LoserScore: 2, Started: start, Finished: finish},
	})

	require.Len(t, msg.Entries, 15)
	// Entries go out oldest-last; the client renders bottom-up.
	assert.Equal(t, "a beat b#7-0#5:01", msg.Entries[14])
	assert.Equal(t, "c beat d#8-2#5:01", msg.Entries[13])
	assert.Equal(t, " # # ", msg.Entries[0])
}

func TestLastPlayedEmpty(t *testing.T) {
	msg := NewLastPlayed(nil)
	require.Len(t, msg.Entries, 15)
	assert.Equal(t, "No recent battles# # ", msg.Entries[14])
	assert.Equal(t, " # # ", msg.Entries[0])
}

func TestRankingCappedAtHundred(t *testing.T) {
	entries := make([]RankingEntry, 150)
	for i := range entries {
		entries[i] = RankingEntry{Username: "p", Wins: 1, Games: 2}
	}
	args := RankingThisMonth{Entries: entries}.Args()
	require.Len(t, args, 3+3*100)
}

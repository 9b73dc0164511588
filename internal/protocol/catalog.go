package protocol

import (
	"errors"
	"strconv"
)

var errBadField = errors.New("protocol: bad field value")

// catalog lists every message descriptor in matching priority order.
// Several kinds share literals and are told apart only by field count
// (JoinLobby vs JoinGame vs LobbyState all start with <L>), so the
// order and the argc sets together form the wire contract. Do not
// reorder entries without checking the overlapping prefixes.
var catalog = []descriptor{
	{KindDisconnect, []string{"<DISCONNECTED>"}, []int{1},
		func(args []string) (Message, error) { return Disconnect{}, nil }},
	{KindPolicyFileRequest, []string{"<policy-file-request/>"}, []int{1},
		func(args []string) (Message, error) { return PolicyFileRequest{}, nil }},
	{KindHelloLobby, []string{"<QR_L>"}, []int{2},
		func(args []string) (Message, error) {
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return nil, err
			}
			return HelloLobby{SwfVersion: v}, nil
		}},
	{KindJoinLobby, []string{"<L>"}, []int{3},
		func(args []string) (Message, error) {
			return JoinLobby{Username: args[1], Password: args[2]}, nil
		}},
	{KindHelloGame, []string{"<QR_G>"}, []int{1},
		func(args []string) (Message, error) { return HelloGame{}, nil }},
	{KindJoinGame, []string{"<L>"}, []int{6},
		func(args []string) (Message, error) {
			return JoinGame{
				Username:         args[1],
				Auth:             args[2],
				OpponentUsername: args[3],
				OpponentAuth:     args[4],
				Password:         args[5],
			}, nil
		}},
	{KindSetComment, []string{"<SERVER>", "<COMMENT>"}, []int{4},
		func(args []string) (Message, error) {
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return nil, err
			}
			return SetComment{Idx: idx, Comment: args[3]}, nil
		}},
	{KindGameChat, []string{"<S>", "<CHAT>"}, []int{3},
		func(args []string) (Message, error) { return GameChat{Text: args[2]}, nil }},
	{KindLobbyChat, []string{"<B>", "<CHAT>"}, []int{4},
		func(args []string) (Message, error) {
			// Clients always send a numeric slot index; the empty idx
			// is reserved for server-originated lines like the MOTD.
			if _, err := strconv.Atoi(args[2]); err != nil {
				return nil, err
			}
			return LobbyChat{Idx: args[2], Text: args[3]}, nil
		}},
	{KindUsePower, []string{"<S>", "<USE_POWER>"}, []int{4, 5},
		func(args []string) (Message, error) {
			if !IsValidPower(args[2]) {
				return nil, errBadField
			}
			piece, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			m := UsePower{Power: args[2], Piece: piece}
			if len(args) > 4 {
				m.Arg = args[4]
				m.HasArg = true
			}
			return m, nil
		}},
	{KindServerRecent, []string{"<SERVER>", "<RECENT>"}, []int{2},
		func(args []string) (Message, error) { return ServerRecent{}, nil }},
	{KindServerRanking, []string{"<SERVER>", "<RANKING>"}, []int{4},
		func(args []string) (Message, error) {
			year, err := strconv.Atoi(args[2])
			if err != nil {
				return nil, err
			}
			month, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			return ServerRanking{Year: year, Month: month}, nil
		}},
	{KindServerAlive, []string{"<SERVER>", "<ALIVE?>"}, []int{2},
		func(args []string) (Message, error) { return ServerAlive{}, nil }},
	{KindServerPing, []string{"<SERVER>", "<PING>"}, []int{2},
		func(args []string) (Message, error) { return ServerPing{}, nil }},
	{KindCrossDomainPolicy, []string{crossDomainPolicyXML}, []int{1},
		func(args []string) (Message, error) { return CrossDomainPolicy{}, nil }},
	{KindPlayerCount, []string{"<S>", "<SERVER>", "<PLAYERS_COUNT>"}, []int{4},
		func(args []string) (Message, error) {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			return PlayerCount{Count: n}, nil
		}},
	{KindBroadcastComment, []string{"<B>", "<COMMENT>"}, []int{4},
		func(args []string) (Message, error) {
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return nil, err
			}
			return BroadcastComment{Idx: idx, Comment: args[3]}, nil
		}},
	{KindOldSwf, []string{"<S>", "<SERVER>", "<OLD_SWF>"}, []int{3},
		func(args []string) (Message, error) { return OldSwf{}, nil }},
	{KindNameTaken, []string{"<S>", "<SERVER>", "<NAME_TAKEN>"}, []int{4},
		func(args []string) (Message, error) {
			return NameTaken{Taken: args[3] == "<YES>"}, nil
		}},
	{KindServerAliveOK, []string{"<S>", "<SERVER>", "<ALIVE>"}, []int{3},
		func(args []string) (Message, error) { return ServerAliveOK{}, nil }},
	{KindGameServerAliveOK, []string{"<SERVER>", "<ALIVE>"}, []int{2},
		func(args []string) (Message, error) { return GameServerAliveOK{}, nil }},
	{KindLobbyDuplicate, []string{"<L>", "<DUPLICATE>"}, []int{2},
		func(args []string) (Message, error) { return LobbyDuplicate{}, nil }},
	{KindLobbyBadMember, []string{"<L>", "<BAD_MEMBER>"}, []int{2},
		func(args []string) (Message, error) { return LobbyBadMember{}, nil }},
	{KindLastLogged, []string{"<S>", "<SERVER>", "<LAST_LOGGED>"}, []int{6},
		func(args []string) (Message, error) {
			mins, err := strconv.Atoi(args[4])
			if err != nil {
				return nil, err
			}
			return LastLogged{Username: args[3], Minutes: mins, Motd: args[5]}, nil
		}},
	{KindLastPlayed, []string{"<S>", "<SERVER>", "<LAST_PLAYED>"}, []int{3 + lastPlayedEntries},
		func(args []string) (Message, error) {
			entries := make([]string, lastPlayedEntries)
			copy(entries, args[3:])
			return LastPlayed{Entries: entries}, nil
		}},
	{KindRankingThisMonth, []string{"<S>", "<SERVER>", "<RANKING(thisMonth)>"}, []int{argcAny},
		func(args []string) (Message, error) {
			rest := args[3:]
			if len(rest)%3 != 0 {
				return nil, errBadField
			}
			entries := make([]RankingEntry, 0, len(rest)/3)
			for i := 0; i < len(rest); i += 3 {
				wins, err := strconv.Atoi(rest[i+1])
				if err != nil {
					return nil, err
				}
				games, err := strconv.Atoi(rest[i+2])
				if err != nil {
					return nil, err
				}
				entries = append(entries, RankingEntry{Username: rest[i], Wins: wins, Games: games})
			}
			return RankingThisMonth{Entries: entries}, nil
		}},
	{KindLobbyState, []string{"<L>"}, []int{1 + LobbySlots*playerFieldCount},
		func(args []string) (Message, error) {
			players := make([]PlayerInfo, LobbySlots)
			for i := 0; i < LobbySlots; i++ {
				f := args[1+i*playerFieldCount:]
				score, err := strconv.Atoi(f[2])
				if err != nil {
					return nil, err
				}
				p := PlayerInfo{Username: f[0], Comment: f[1], Score: score}
				for j := range p.Awards {
					p.Awards[j], err = strconv.Atoi(f[3+j])
					if err != nil {
						return nil, err
					}
				}
				players[i] = p
			}
			return LobbyState{Players: players}, nil
		}},
	{KindOpponentDead, []string{"<S>", "<SERVER>", "<OPPDEAD>"}, []int{3},
		func(args []string) (Message, error) { return OpponentDead{}, nil }},
	{KindVoidScoreOK, []string{"<S>", "<SERVER>", "<VOID>"}, []int{3},
		func(args []string) (Message, error) { return VoidScoreOK{}, nil }},
	{KindGrabPiece, []string{"<S>", "<GRAB_PIECE>"}, []int{3},
		decodePiece(func(piece int) Message { return GrabPiece{Piece: piece} })},
	{KindReleasePiece, []string{"<S>", "<RELEASE_PIECE>"}, []int{3},
		decodePiece(func(piece int) Message { return ReleasePiece{Piece: piece} })},
	{KindSwitchPlayer, []string{"<S>", "<SWITCH_PLAYER>"}, []int{3},
		decodePiece(func(piece int) Message { return SwitchPlayer{Piece: piece} })},
	{KindRecursiveDone, []string{"<S>", "<RECURSIVE_DONE>"}, []int{3},
		decodePiece(func(piece int) Message { return RecursiveDone{Piece: piece} })},
	{KindRemovePlayer, []string{"<S>", "<REMOVE_PLAYER>"}, []int{3},
		decodePiece(func(piece int) Message { return RemovePlayer{Piece: piece} })},
	{KindPowerNoEffect, []string{"<S>", "<NO_EFFECT_OPP>"}, []int{3},
		decodePiece(func(id int) Message { return PowerNoEffect{PowerID: id} })},
	{KindNuke, []string{"<S>", "<NUKE>"}, []int{2},
		func(args []string) (Message, error) { return Nuke{}, nil }},
	{KindResign, []string{"<S>", "<SETTINGS>", "<RESIGN>"}, []int{3},
		func(args []string) (Message, error) { return Resign{}, nil }},
	{KindJumpOnPiece, []string{"<S>", "<JUMP_ON_PIECE_ANIMATION>"}, []int{4},
		func(args []string) (Message, error) {
			piece, target, err := atoi2(args[2], args[3])
			if err != nil {
				return nil, err
			}
			return JumpOnPiece{Piece: piece, TargetPiece: target}, nil
		}},
	{KindGetPowerSquare, []string{"<S>", "<GET_POWER_SQUARE>"}, []int{4},
		func(args []string) (Message, error) {
			square, player, err := atoi2(args[2], args[3])
			if err != nil {
				return nil, err
			}
			return GetPowerSquare{SquarePiece: square, PlayerPiece: player}, nil
		}},
	{KindSettingsLoaded, []string{"<S>", "<SETTINGS>", "<LOADED>"}, []int{4},
		func(args []string) (Message, error) {
			v, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			return SettingsLoaded{Version: v}, nil
		}},
	{KindAssignPowerSquare, []string{"<S>", "<ASSIGN_POWER_SQUARE>"}, []int{4},
		func(args []string) (Message, error) {
			id, piece, err := atoi2(args[2], args[3])
			if err != nil {
				return nil, err
			}
			return AssignPowerSquare{PowerID: id, Piece: piece}, nil
		}},
	{KindAssignNextPowerCount, []string{"<S>", "<ASSIGN_NEXT_POWER_COUNT>"}, []int{3},
		decodePiece(func(count int) Message { return AssignNextPowerCount{Count: count} })},
	{KindNewGridCoord, []string{"<S>", "<NEW_GRID_CORD>"}, []int{6},
		func(args []string) (Message, error) {
			m := NewGridCoord{}
			var err error
			for i, dst := range []*int{&m.Piece, &m.Column, &m.Row, &m.Step} {
				*dst, err = strconv.Atoi(args[2+i])
				if err != nil {
					return nil, err
				}
			}
			return m, nil
		}},
	{KindChallenge, []string{"<S>", anyToken, anyToken, "<SHALLWEPLAYAGAME?>"}, []int{4},
		func(args []string) (Message, error) {
			challenged, challenger, err := atoi2(args[1], args[2])
			if err != nil {
				return nil, err
			}
			return Challenge{ChallengedIdx: challenged, ChallengerIdx: challenger}, nil
		}},
	{KindChallengeAuth, []string{"<S>", anyToken, anyToken, "<AUTHENTICATION>"}, []int{5},
		func(args []string) (Message, error) {
			challenged, challenger, err := atoi2(args[1], args[2])
			if err != nil {
				return nil, err
			}
			return ChallengeAuth{ChallengedIdx: challenged, ChallengerIdx: challenger, Auth: args[4]}, nil
		}},
	{KindSettingsReadyOff, []string{"<S>", "<SETTINGS>", "<READY_OFF>"}, []int{3},
		func(args []string) (Message, error) { return SettingsReadyOff{}, nil }},
	{KindSettingsArenaSize, []string{"<S>", "<SETTINGS>", "<ARENA_SIZE>"}, []int{4},
		func(args []string) (Message, error) {
			if _, ok := validArenaSizes[args[3]]; !ok {
				return nil, errBadField
			}
			return SettingsArenaSize{Size: args[3]}, nil
		}},
	{KindSettingsSquadronSize, []string{"<S>", "<SETTINGS>", "<SQUADRON_SIZE>"}, []int{4},
		func(args []string) (Message, error) {
			if _, ok := validSquadronSizes[args[3]]; !ok {
				return nil, errBadField
			}
			return SettingsSquadronSize{Size: args[3]}, nil
		}},
	{KindSettingsTimer, []string{"<S>", "<SETTINGS>", "<TIMER>"}, []int{4},
		func(args []string) (Message, error) {
			t, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			if _, ok := validTimerValues[t]; !ok {
				return nil, errBadField
			}
			return SettingsTimer{Time: t}, nil
		}},
	{KindSettingsTopBottom, []string{"<S>", "<SETTINGS>", "<TOP_BOTTOM>"}, []int{4},
		func(args []string) (Message, error) {
			return SettingsTopBottom{TopBottom: args[3] == "true"}, nil
		}},
	{KindSettingsColor, []string{"<S>", "<SETTINGS>", "<COLOR>"}, []int{5},
		func(args []string) (Message, error) {
			c, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, err
			}
			return SettingsColor{DecorationColor: c, TextColor: args[4]}, nil
		}},
	{KindSettingsReadyOn, []string{"<S>", "<SETTINGS>", "<READY_ON>"}, []int{7},
		func(args []string) (Message, error) {
			m := SettingsReadyOn{TextColor: args[6]}
			var err error
			for i, dst := range []*int{&m.GridSize, &m.PlayerSize, &m.DecorationColor} {
				*dst, err = strconv.Atoi(args[3+i])
				if err != nil {
					return nil, err
				}
			}
			return m, nil
		}},
	{KindSettingsReadyOnAgain, []string{"<S>", "<SETTINGS>", "<READY_ON>"}, []int{3},
		func(args []string) (Message, error) { return SettingsReadyOnAgain{}, nil }},
	{KindSwitcheroo, []string{"<S>", "<SWITCHEROO>"}, []int{6},
		func(args []string) (Message, error) {
			m := Switcheroo{}
			var err error
			for i, dst := range []*int{&m.Piece, &m.OldColumn, &m.OldRow, &m.Occupier} {
				*dst, err = strconv.Atoi(args[2+i])
				if err != nil {
					return nil, err
				}
			}
			return m, nil
		}},
	{KindRemoveOneWayWall, []string{"<S>", "<REMOVE_ONEWAY_WALL>"}, []int{4},
		func(args []string) (Message, error) {
			wall, piece, err := atoi2(args[2], args[3])
			if err != nil {
				return nil, err
			}
			return RemoveOneWayWall{Wall: wall, Piece: piece}, nil
		}},
	{KindBankruptAction, []string{"<S>", "<BR_ANIMATION>"}, []int{3},
		decodePiece(func(idx int) Message { return BankruptAction{PlayerIndex: idx} })},
	{KindVoidScore, []string{"<SERVER>", "<VOID>"}, []int{2},
		func(args []string) (Message, error) { return VoidScore{}, nil }},
	{KindAddStats, []string{"<SERVER>", "<STATS>"}, []int{7},
		func(args []string) (Message, error) {
			m := AddStats{GridSize: args[5], SquadronSize: args[6]}
			var err error
			for i, dst := range []*int{&m.OwnPieceCount, &m.OpponentPieceCount, &m.CycleCounter} {
				*dst, err = strconv.Atoi(args[2+i])
				if err != nil {
					return nil, err
				}
			}
			return m, nil
		}},
}

// decodePiece builds a decoder for the common single-int-payload shape.
func decodePiece(build func(int) Message) func([]string) (Message, error) {
	return func(args []string) (Message, error) {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, err
		}
		return build(n), nil
	}
}

func atoi2(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

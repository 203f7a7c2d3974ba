/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	VerbCreate  = "create"
	VerbRejoin  = "rejoin"
	VerbAnswer  = "answer"
	VerbProfile = "profile"
	VerbPing    = "ping"
)

const (
	ReplyCreated          = "team_create_success"
	ReplyTaken            = "team_taken"
	ReplyNameInvalid      = "name_invalid"
	ReplyStoreUnavailable = "store_unavailable"
	ReplyGameFinished     = "game_finished"
	ReplyRejoined         = "team_rejoin_success"
	ReplyNotFound         = "team_does_not_exist"
	ReplyTokenInvalid     = "token_invalid"
	ReplyProfileSaved     = "profile_saved"
	ReplyProfileInvalid   = "profile_invalid"
	ReplyPong             = "pong"
)

const (
	BroadcastStart  = "start"
	BroadcastEnd    = "end question"
	BroadcastFinish = "finish final"
)

// Frame is one inbound text message: a verb and the rest of the line.
type Frame struct {
	Verb string
	Arg  string
}

// ParseFrame splits raw at the first space.
func ParseFrame(raw string) (Frame, error) {
	if raw == "" || strings.ContainsAny(raw, "\r\n") {
		return Frame{}, fmt.Errorf("%w: malformed frame", ErrProtocol)
	}

	verb, arg, _ := strings.Cut(raw, " ")
	if verb == "" {
		return Frame{}, fmt.Errorf("%w: missing verb", ErrProtocol)
	}

	return Frame{Verb: verb, Arg: arg}, nil
}

// parseRejoin splits "<team> <token>" at the last space, since team names
// may contain spaces and tokens never do.
func parseRejoin(arg string) (team, tok string, err error) {
	i := strings.LastIndexByte(arg, ' ')
	if i <= 0 || i == len(arg)-1 {
		return "", "", fmt.Errorf("%w: rejoin needs a team and a token", ErrProtocol)
	}

	return arg[:i], arg[i+1:], nil
}

type answer struct {
	index    int
	response string
	score    int
	legacy   bool
}

// parseAnswer accepts "<index> <response>" or a bare integer score.
func parseAnswer(arg string) (answer, error) {
	head, rest, found := strings.Cut(arg, " ")

	n, err := strconv.Atoi(head)
	if err != nil {
		return answer{}, fmt.Errorf("%w: answer %q", ErrProtocol, arg)
	}

	if !found {
		return answer{score: n, legacy: true}, nil
	}

	return answer{index: n, response: rest}, nil
}

type inbound struct {
	conn Conn
	raw  string
	at   time.Time
}

func (c *Coordinator) route(ctx context.Context, in inbound) {
	frame, err := ParseFrame(in.raw)
	if err != nil {
		c.protocolViolation(in.conn, err)
		return
	}

	switch frame.Verb {
	case VerbCreate:
		c.handleCreate(ctx, in.conn, frame.Arg)
	case VerbRejoin:
		c.handleRejoin(in.conn, frame.Arg)
	case VerbAnswer:
		c.handleAnswer(in, frame.Arg)
	case VerbProfile:
		c.handleProfile(ctx, in.conn, frame.Arg)
	case VerbPing:
		c.unicast(in.conn, ReplyPong)
	default:
		c.protocolViolation(in.conn, fmt.Errorf("%w: unknown verb %q", ErrProtocol, frame.Verb))
	}
}

func (c *Coordinator) protocolViolation(conn Conn, err error) {
	log.Debug().Str("conn", conn.ID()).Err(err).Msg("dropped frame")
}

func (c *Coordinator) handleCreate(ctx context.Context, conn Conn, name string) {
	if c.round.Phase == PhaseFinished {
		c.unicast(conn, ReplyGameFinished)
		return
	}

	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()

	team, tok, err := c.registry.Create(storeCtx, name, conn)
	switch {
	case errors.Is(err, ErrNameInvalid):
		c.unicast(conn, ReplyNameInvalid)
		return
	case errors.Is(err, ErrTeamTaken):
		c.unicast(conn, ReplyTaken)
		return
	case err != nil:
		c.warn(fmt.Sprintf("create %q failed: %v", strings.TrimSpace(name), err))
		c.unicast(conn, ReplyStoreUnavailable)
		return
	}

	log.Info().Str("team", team.Name).Str("conn", conn.ID()).Msg("team created")

	c.unicast(conn, ReplyCreated+" "+tok)
	c.catchUp(conn)
}

func (c *Coordinator) handleRejoin(conn Conn, arg string) {
	name, raw, err := parseRejoin(arg)
	if err != nil {
		c.unicast(conn, ReplyTokenInvalid)
		return
	}

	claims, err := c.tokens.Verify(raw)
	if err != nil || claims.Team != name {
		log.Debug().Str("team", name).Str("conn", conn.ID()).Err(err).Msg("rejected rejoin token")
		c.unicast(conn, ReplyTokenInvalid)
		return
	}

	team, previous, err := c.registry.Rejoin(name, claims.IssuedAt, conn)
	if err != nil {
		c.unicast(conn, ReplyNotFound)
		return
	}

	if previous != nil {
		delete(c.conns, previous.ID())
		_ = previous.Close()
	}

	log.Info().
		Str("team", team.Name).
		Str("conn", conn.ID()).
		Int("committed", team.Committed).
		Msg("team rejoined")

	c.unicast(conn, ReplyRejoined)
	c.catchUp(conn)
}

func (c *Coordinator) handleAnswer(in inbound, arg string) {
	ans, err := parseAnswer(arg)
	if err != nil {
		c.protocolViolation(in.conn, err)
		return
	}

	team, ok := c.registry.TeamFor(in.conn)
	if !ok || c.round.Phase != PhaseOpen {
		return
	}

	var points int
	if ans.legacy {
		points, ok = c.ledger.RecordScore(team, c.round.Index, ans.score)
	} else {
		if !c.round.Accepting(ans.index) {
			return
		}
		points, ok = c.ledger.RecordAnswer(team, ans.index, ans.response, in.at.Sub(c.round.OpenedAt))
	}

	if ok {
		log.Debug().
			Str("team", team.Name).
			Int("question", c.round.Index).
			Int("points", points).
			Msg("answer recorded")
	}
}

func (c *Coordinator) handleProfile(ctx context.Context, conn Conn, arg string) {
	var profile Profile
	if err := json.Unmarshal([]byte(arg), &profile); err != nil {
		c.unicast(conn, ReplyProfileInvalid)
		return
	}

	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()

	err := c.registry.UpdateProfile(storeCtx, conn, profile)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		c.warn(fmt.Sprintf("profile update failed: %v", err))
		c.unicast(conn, ReplyStoreUnavailable)
	case err != nil:
		c.unicast(conn, ReplyProfileInvalid)
	default:
		c.unicast(conn, ReplyProfileSaved)
	}
}

// catchUp resends the open question to a team that joined mid-round when
// the late-join policy asks for it.
func (c *Coordinator) catchUp(conn Conn) {
	if c.lateJoin == LateJoinResend && c.round.Phase == PhaseOpen {
		c.unicast(conn, startFrame(c.round.Index))
	}
}

func startFrame(index int) string {
	return BroadcastStart + " " + strconv.Itoa(index)
}

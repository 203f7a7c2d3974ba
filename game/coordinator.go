/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/triviabox/events"
	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/store"
	"github.com/Seednode/triviabox/token"
)

const (
	maxWarnings         = 20
	defaultStoreTimeout = 2 * time.Second
)

type LateJoinPolicy string

const (
	LateJoinWait   LateJoinPolicy = "wait"
	LateJoinResend LateJoinPolicy = "resend"
)

// Op is an operator command.
type Op string

const (
	OpStart   Op = "start"
	OpEnd     Op = "end"
	OpAdvance Op = "next"
	OpFinish  Op = "finish"
)

// ParseOp maps an operator word to an Op.
func ParseOp(s string) (Op, bool) {
	switch op := Op(s); op {
	case OpStart, OpEnd, OpAdvance, OpFinish:
		return op, true
	}

	return "", false
}

type Options struct {
	Bank     *questions.Bank
	Store    store.Store
	Tokens   *token.Service
	Events   events.Publisher
	Clock    clockwork.Clock
	LateJoin LateJoinPolicy

	// AutoEnd closes each question Grace after its time limit runs out.
	AutoEnd bool
	Grace   time.Duration

	// StoreTimeout bounds the store writes made for one event, retries
	// included, so a failing store stalls the game only briefly.
	StoreTimeout time.Duration
}

type opRequest struct {
	op    Op
	reply chan error
}

// Coordinator owns every piece of game state and mutates it from the single
// goroutine running Run. Everything else talks to it over channels.
type Coordinator struct {
	clock     clockwork.Clock
	tokens    *token.Service
	events    events.Publisher
	lateJoin  LateJoinPolicy
	autoEnd   bool
	grace     time.Duration
	startedAt time.Time

	storeTimeout time.Duration

	registry *Registry
	round    *Round
	ledger   *Ledger
	conns    map[string]Conn
	warnings []string

	timer       clockwork.Timer
	timerCancel chan struct{}

	register chan Conn
	unreg    chan Conn
	frames   chan inbound
	ops      chan opRequest
	timeouts chan int
	queries  chan func()
	done     chan struct{}
}

func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.LateJoin == "" {
		opts.LateJoin = LateJoinWait
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}

	startedAt := opts.Clock.Now()

	return &Coordinator{
		clock:     opts.Clock,
		tokens:    opts.Tokens,
		events:    opts.Events,
		lateJoin:  opts.LateJoin,
		autoEnd:   opts.AutoEnd,
		grace:     opts.Grace,
		startedAt: startedAt,

		storeTimeout: opts.StoreTimeout,

		registry: NewRegistry(opts.Store, opts.Tokens, startedAt, opts.Clock.Now),
		round:    NewRound(opts.Bank),
		ledger:   NewLedger(opts.Bank, opts.Store),
		conns:    make(map[string]Conn),
		register: make(chan Conn),
		unreg:    make(chan Conn),
		frames:   make(chan inbound),
		ops:      make(chan opRequest),
		timeouts: make(chan int),
		queries:  make(chan func()),
		done:     make(chan struct{}),
	}
}

// StartedAt is the freshness anchor for rejoin tokens.
func (c *Coordinator) StartedAt() time.Time {
	return c.startedAt
}

// Run processes events until ctx is cancelled. On exit the submission
// backlog is flushed and every connection is closed.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	defer c.shutdown(ctx)

	log.Info().
		Int("questions", c.round.Total()).
		Str("late_join", string(c.lateJoin)).
		Bool("auto_end", c.autoEnd).
		Msg("coordinator started")

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-c.register:
			c.conns[conn.ID()] = conn
			log.Debug().Str("conn", conn.ID()).Int("conns", len(c.conns)).Msg("connection registered")

		case conn := <-c.unreg:
			delete(c.conns, conn.ID())
			if team := c.registry.Disconnect(conn); team != nil {
				log.Info().Str("team", team.Name).Str("conn", conn.ID()).Msg("team disconnected")
			}

		case in := <-c.frames:
			c.route(ctx, in)

		case req := <-c.ops:
			req.reply <- c.apply(ctx, req.op)

		case index := <-c.timeouts:
			if c.round.Accepting(index) {
				log.Info().Int("question", index).Msg("question timed out")
				c.endRound(ctx)
			}

		case fn := <-c.queries:
			fn()
		}
	}
}

func (c *Coordinator) shutdown(ctx context.Context) {
	c.stopTimer()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.ledger.Flush(flushCtx); err != nil {
		log.Error().Err(err).Msg("submissions lost on shutdown")
	}

	for id, conn := range c.conns {
		_ = conn.Close()
		delete(c.conns, id)
	}

	log.Info().Msg("coordinator stopped")
}

// Register adds conn to the broadcast set.
func (c *Coordinator) Register(ctx context.Context, conn Conn) error {
	select {
	case c.register <- conn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Unregister removes conn and marks its team disconnected.
func (c *Coordinator) Unregister(conn Conn) {
	select {
	case c.unreg <- conn:
	case <-c.done:
	}
}

// Deliver hands one inbound frame to the coordinator.
func (c *Coordinator) Deliver(ctx context.Context, conn Conn, raw string) error {
	in := inbound{conn: conn, raw: raw, at: c.clock.Now()}

	select {
	case c.frames <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Do applies an operator command and returns its outcome.
func (c *Coordinator) Do(ctx context.Context, op Op) error {
	req := opRequest{op: op, reply: make(chan error, 1)}

	select {
	case c.ops <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	return <-req.reply
}

func (c *Coordinator) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	select {
	case c.queries <- func() { fn(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	<-finished

	return nil
}

func (c *Coordinator) apply(ctx context.Context, op Op) error {
	now := c.clock.Now()

	switch op {
	case OpStart:
		if err := c.round.Start(now); err != nil {
			return err
		}
		c.openRound(ctx)

	case OpEnd:
		if c.round.Phase != PhaseOpen {
			return fmt.Errorf("%w: end from %s", ErrInvalidTransition, c.round.Phase)
		}
		c.endRound(ctx)

	case OpAdvance:
		finished, err := c.round.Advance(now)
		if err != nil {
			return err
		}
		if finished {
			c.finishGame(ctx)
		} else {
			c.openRound(ctx)
		}

	case OpFinish:
		if c.round.Phase == PhaseOpen {
			c.endRound(ctx)
		}
		if err := c.round.Finish(); err != nil {
			return err
		}
		c.finishGame(ctx)

	default:
		return fmt.Errorf("%w: unknown command %q", ErrProtocol, op)
	}

	log.Info().Str("op", string(op)).Str("phase", string(c.round.Phase)).Int("question", c.round.Index).Msg("operator command applied")

	return nil
}

func (c *Coordinator) openRound(ctx context.Context) {
	index := c.round.Index

	c.broadcast(startFrame(index))

	if c.autoEnd {
		c.armTimer(index, c.round.Deadline.Sub(c.clock.Now())+c.grace)
	}

	c.publish(ctx, events.Event{Type: events.RoundStarted, Index: index})
}

func (c *Coordinator) endRound(ctx context.Context) {
	if err := c.round.Close(); err != nil {
		c.warn(err.Error())
		return
	}

	c.stopTimer()
	c.broadcast(BroadcastEnd)

	index := c.round.Index

	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()

	if err := c.ledger.CommitRound(storeCtx, index, c.registry.Teams()); err != nil {
		c.warn(fmt.Sprintf("question %d: %v", index, err))
	}

	c.publish(ctx, events.Event{Type: events.RoundEnded, Index: index, Scores: c.registry.VisibleScores()})
}

func (c *Coordinator) finishGame(ctx context.Context) {
	c.stopTimer()
	c.broadcast(BroadcastFinish)

	if c.ledger.Backlog() > 0 {
		storeCtx, cancel := c.storeContext(ctx)
		defer cancel()

		if err := c.ledger.Flush(storeCtx); err != nil {
			c.warn(err.Error())
		}
	}

	c.publish(ctx, events.Event{Type: events.GameFinished, Index: c.round.Index, Scores: c.registry.VisibleScores()})
}

func (c *Coordinator) armTimer(index int, d time.Duration) {
	c.stopTimer()

	timer := c.clock.NewTimer(d)
	cancel := make(chan struct{})
	c.timer, c.timerCancel = timer, cancel

	go func() {
		select {
		case <-timer.Chan():
			select {
			case c.timeouts <- index:
			case <-cancel:
			case <-c.done:
			}
		case <-cancel:
		case <-c.done:
		}
	}()

	log.Debug().Int("question", index).Dur("after", d).Msg("armed question timer")
}

func (c *Coordinator) stopTimer() {
	if c.timer == nil {
		return
	}

	stopAndDrainTimer(c.timer)
	close(c.timerCancel)
	c.timer, c.timerCancel = nil, nil
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (c *Coordinator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.storeTimeout)
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	event.At = c.clock.Now()

	if err := c.events.Publish(ctx, event); err != nil {
		c.warn(fmt.Sprintf("publish %s: %v", event.Type, err))
	}
}

func (c *Coordinator) broadcast(frame string) {
	for _, conn := range c.conns {
		c.unicast(conn, frame)
	}
}

// unicast queues frame on conn. A connection that cannot keep up is dropped
// so it never holds back anyone else.
func (c *Coordinator) unicast(conn Conn, frame string) {
	if conn.Send(frame) {
		return
	}

	log.Warn().Str("conn", conn.ID()).Str("frame", frame).Msg("send buffer full, disconnecting")

	delete(c.conns, conn.ID())
	c.registry.Disconnect(conn)
	_ = conn.Close()
}

func (c *Coordinator) warn(msg string) {
	log.Warn().Msg(msg)

	c.warnings = append(c.warnings, c.clock.Now().Format(time.TimeOnly)+" "+msg)
	if len(c.warnings) > maxWarnings {
		c.warnings = c.warnings[len(c.warnings)-maxWarnings:]
	}
}

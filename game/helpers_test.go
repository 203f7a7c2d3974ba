/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/store"
	"github.com/Seednode/triviabox/token"
)

var (
	gameStart    = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	errStoreDown = errors.New("connection refused")
)

type fakeConn struct {
	id string

	mu        sync.Mutex
	frames    []string
	closed    bool
	rejectAll bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.rejectAll {
		return false
	}

	f.frames = append(f.frames, frame)

	return true
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeConn) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.frames)
}

func (f *fakeConn) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.frames) == 0 {
		return ""
	}

	return f.frames[len(f.frames)-1]
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// flakyStore fails writes while down is set and blocks them until the
// context ends while hang is set.
type flakyStore struct {
	*store.Memory

	mu      sync.Mutex
	down    bool
	hang    bool
	inserts int
}

func (f *flakyStore) setHang(hang bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hang = hang
}

func (f *flakyStore) insertAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.inserts
}

func (f *flakyStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.down = down
}

func (f *flakyStore) isDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.down
}

func (f *flakyStore) InsertTeam(ctx context.Context, team store.Team) error {
	if f.isDown() {
		return errStoreDown
	}
	return f.Memory.InsertTeam(ctx, team)
}

func (f *flakyStore) UpdateTeam(ctx context.Context, team store.Team) error {
	if f.isDown() {
		return errStoreDown
	}
	return f.Memory.UpdateTeam(ctx, team)
}

func (f *flakyStore) InsertSubmission(ctx context.Context, sub store.Submission) error {
	f.mu.Lock()
	f.inserts++
	hang := f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.isDown() {
		return errStoreDown
	}
	return f.Memory.InsertSubmission(ctx, sub)
}

// testBank has two multiple choice questions with a 120 second limit,
// both answered by "B".
func testBank(t *testing.T) *questions.Bank {
	t.Helper()

	bank, err := questions.NewBank([]questions.Question{
		{Title: "First floor", Options: []string{"A", "B", "C"}, Correct: 1, Time: 120},
		{Title: "Second floor", Options: []string{"A", "B", "C"}, Correct: 1, Time: 120},
	})
	if err != nil {
		t.Fatal(err)
	}

	return bank
}

func testTokens(t *testing.T, clock clockwork.Clock) *token.Service {
	t.Helper()

	tokens, err := token.New([]byte("test secret"), clock)
	if err != nil {
		t.Fatal(err)
	}

	return tokens
}

type harness struct {
	c      *Coordinator
	clock  *clockwork.FakeClock
	store  *flakyStore
	tokens *token.Service
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(gameStart)
	h := &harness{
		clock:  clock,
		store:  &flakyStore{Memory: store.NewMemory()},
		tokens: testTokens(t, clock),
	}

	opts := Options{
		Bank:   testBank(t),
		Store:  h.store,
		Tokens: h.tokens,
		Clock:  clock,
	}
	if configure != nil {
		configure(&opts)
	}

	h.c = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.c.Run(ctx)
		close(stopped)
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return h
}

func (h *harness) connect(t *testing.T, id string) *fakeConn {
	t.Helper()

	conn := newFakeConn(id)
	if err := h.c.Register(context.Background(), conn); err != nil {
		t.Fatal(err)
	}

	return conn
}

// send delivers raw and waits until the coordinator has handled it.
func (h *harness) send(t *testing.T, conn *fakeConn, raw string) {
	t.Helper()

	if err := h.c.Deliver(context.Background(), conn, raw); err != nil {
		t.Fatal(err)
	}

	h.status(t)
}

func (h *harness) do(t *testing.T, op Op) {
	t.Helper()

	if err := h.c.Do(context.Background(), op); err != nil {
		t.Fatalf("%s: %v", op, err)
	}
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()

	s, err := h.c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	return s
}

func (h *harness) team(t *testing.T, name string) TeamView {
	t.Helper()

	teams, err := h.c.Teams(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for _, team := range teams {
		if team.Name == name {
			return team
		}
	}

	t.Fatalf("team %q not found", name)

	return TeamView{}
}

// create registers a team on conn and returns its rejoin token.
func (h *harness) create(t *testing.T, conn *fakeConn, name string) string {
	t.Helper()

	h.send(t, conn, VerbCreate+" "+name)

	for _, frame := range conn.Frames() {
		if tok, ok := strings.CutPrefix(frame, ReplyCreated+" "); ok {
			return tok
		}
	}

	t.Fatalf("create %q: frames %q", name, conn.Frames())

	return ""
}

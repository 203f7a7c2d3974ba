/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var errFlaky = errors.New("connection reset")

type flakyStore struct {
	*Memory

	failures int
	calls    int
}

func (f *flakyStore) InsertSubmission(ctx context.Context, sub Submission) error {
	f.calls++
	if f.calls <= f.failures {
		return errFlaky
	}
	return f.Memory.InsertSubmission(ctx, sub)
}

func (f *flakyStore) InsertTeam(ctx context.Context, team Team) error {
	f.calls++
	return f.Memory.InsertTeam(ctx, team)
}

func TestRetryingRecovers(t *testing.T) {
	flaky := &flakyStore{Memory: NewMemory(), failures: 2}
	r := NewRetrying(flaky, 3, time.Millisecond, nil)

	if err := r.InsertSubmission(context.Background(), Submission{Team: "Alpha", Points: 10}); err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}

	if flaky.calls != 3 {
		t.Errorf("calls = %d, want 3", flaky.calls)
	}
	if len(flaky.Submissions()) != 1 {
		t.Errorf("submission not stored")
	}
}

func TestRetryingGivesUp(t *testing.T) {
	flaky := &flakyStore{Memory: NewMemory(), failures: 10}
	r := NewRetrying(flaky, 2, time.Millisecond, nil)

	err := r.InsertSubmission(context.Background(), Submission{Team: "Alpha"})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("error = %v, want errFlaky", err)
	}
	if flaky.calls != 3 {
		t.Errorf("calls = %d, want 3", flaky.calls)
	}
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	flaky := &flakyStore{Memory: NewMemory()}
	r := NewRetrying(flaky, 5, time.Millisecond, nil)
	ctx := context.Background()

	if err := r.InsertTeam(ctx, Team{Name: "Alpha"}); err != nil {
		t.Fatal(err)
	}
	if err := r.InsertTeam(ctx, Team{Name: "Alpha"}); !errors.Is(err, ErrTeamExists) {
		t.Fatalf("error = %v, want ErrTeamExists", err)
	}
	if flaky.calls != 2 {
		t.Errorf("calls = %d, want 2", flaky.calls)
	}
}

func TestRetryingStopsOnCancel(t *testing.T) {
	flaky := &flakyStore{Memory: NewMemory(), failures: 10}
	r := NewRetrying(flaky, 5, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.InsertSubmission(ctx, Submission{Team: "Alpha"})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errFlaky) {
		t.Fatalf("error = %v, want errFlaky joined with context.Canceled", err)
	}
	if flaky.calls != 1 {
		t.Errorf("calls = %d, want 1", flaky.calls)
	}
}

// lossyStore commits every write and then reports the first one of each
// kind as failed, like a connection dropped before the reply arrived.
type lossyStore struct {
	*Memory

	teamLost, subLost bool
}

func (l *lossyStore) InsertTeam(ctx context.Context, team Team) error {
	if err := l.Memory.InsertTeam(ctx, team); err != nil {
		return err
	}
	if !l.teamLost {
		l.teamLost = true
		return errFlaky
	}
	return nil
}

func (l *lossyStore) InsertSubmission(ctx context.Context, sub Submission) error {
	if err := l.Memory.InsertSubmission(ctx, sub); err != nil {
		return err
	}
	if !l.subLost {
		l.subLost = true
		return errFlaky
	}
	return nil
}

func TestRetryingAfterLostAcknowledgement(t *testing.T) {
	lossy := &lossyStore{Memory: NewMemory()}
	r := NewRetrying(lossy, 3, time.Millisecond, nil)
	ctx := context.Background()

	if err := r.InsertTeam(ctx, Team{Name: "Alpha Team"}); err != nil {
		t.Fatalf("InsertTeam after lost acknowledgement: %v", err)
	}
	if err := r.InsertTeam(ctx, Team{Name: "Alpha Team"}); !errors.Is(err, ErrTeamExists) {
		t.Errorf("second InsertTeam error = %v, want ErrTeamExists", err)
	}

	if err := r.InsertSubmission(ctx, Submission{Team: "Alpha Team", Points: 230, Solved: true}); err != nil {
		t.Fatalf("InsertSubmission after lost acknowledgement: %v", err)
	}

	if n := len(lossy.Submissions()); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	standings, err := r.Standings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Standing{{Team: "Alpha Team", Points: 230}}, standings); diff != "" {
		t.Errorf("standings mismatch (-want +got):\n%s", diff)
	}
}

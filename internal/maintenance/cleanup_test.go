package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	cutoff  time.Time
	calls   int
	deleted int64
	err     error
}

func (f *fakePruner) DeleteStaleSounds(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestPruneStaleSounds(t *testing.T) {
	now := time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)
	p := &fakePruner{deleted: 4}

	n, err := PruneStaleSounds(context.Background(), p, Config{StaleDays: 14}, now)
	if err != nil || n != 4 {
		t.Fatalf("PruneStaleSounds = %d, %v", n, err)
	}
	if want := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC); !p.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", p.cutoff, want)
	}
}

func TestPruneDisabled(t *testing.T) {
	p := &fakePruner{}
	if _, err := PruneStaleSounds(context.Background(), p, Config{}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("disabled cleanup must not hit the database")
	}
}

func TestPruneWrapsErrors(t *testing.T) {
	dbErr := errors.New("locked")
	p := &fakePruner{err: dbErr}
	if _, err := PruneStaleSounds(context.Background(), p, Config{StaleDays: 1}, time.Now()); !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

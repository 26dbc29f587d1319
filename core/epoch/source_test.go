package epoch

import (
	"testing"
	"time"
)

func TestWallEpochNeverDecreases(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0).UTC()
	now := genesis.Add(5 * time.Hour)
	src, err := NewWall(Config{Genesis: genesis, Length: time.Hour}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new wall: %v", err)
	}
	if got := src.Epoch(); got != 5 {
		t.Fatalf("expected epoch 5, got %d", got)
	}
	now = genesis.Add(2 * time.Hour)
	if got := src.Epoch(); got != 5 {
		t.Fatalf("expected epoch to stay at 5 after clock step back, got %d", got)
	}
	now = genesis.Add(9*time.Hour + time.Minute)
	if got := src.Epoch(); got != 9 {
		t.Fatalf("expected epoch 9, got %d", got)
	}
}

func TestWallBeforeGenesis(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0).UTC()
	src, err := NewWall(Config{Genesis: genesis, Length: time.Hour}, func() time.Time { return genesis.Add(-time.Hour) })
	if err != nil {
		t.Fatalf("new wall: %v", err)
	}
	if got := src.Epoch(); got != 0 {
		t.Fatalf("expected epoch 0 before genesis, got %d", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected zero length to be rejected")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestManualAdvance(t *testing.T) {
	start := time.Unix(100, 0)
	src := NewManual(3, start)
	src.Advance(2, time.Minute)
	if src.Epoch() != 5 {
		t.Fatalf("expected epoch 5, got %d", src.Epoch())
	}
	if !src.Now().Equal(start.Add(time.Minute)) {
		t.Fatalf("unexpected now: %s", src.Now())
	}
}

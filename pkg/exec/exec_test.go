package exec

import (
	"errors"
	"testing"
	"time"
)

func TestExecuteFirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	ok := Execute(func() error {
		attempts++
		return nil
	}, 3, time.Millisecond, "noop")

	if !ok {
		t.Fatalf("expected success")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	ok := Execute(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transport fault")
		}
		return nil
	}, 3, time.Millisecond, "flaky")

	if !ok {
		t.Fatalf("expected success on third attempt")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	attempts := 0
	ok := Execute(func() error {
		attempts++
		return errors.New("permanent fault")
	}, 3, time.Millisecond, "doomed")

	if ok {
		t.Fatalf("expected failure")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestExecuteClampsRetryCount(t *testing.T) {
	attempts := 0
	Execute(func() error {
		attempts++
		return errors.New("nope")
	}, 0, time.Millisecond, "clamped")

	if attempts != 1 {
		t.Fatalf("expected at least one attempt, got %d", attempts)
	}
}

func TestExecuteNoDelayAfterLastAttempt(t *testing.T) {
	start := time.Now()
	Execute(func() error {
		return errors.New("nope")
	}, 2, 50*time.Millisecond, "timed")
	elapsed := time.Since(start)

	// One delay between two attempts, none after the last.
	if elapsed > 150*time.Millisecond {
		t.Fatalf("took too long: %v", elapsed)
	}
}

func TestRunUsesDefaults(t *testing.T) {
	ok := Run(func() error { return nil }, "noop")
	if !ok {
		t.Fatalf("expected success")
	}
}

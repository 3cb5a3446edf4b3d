package telemetry

import (
	"errors"
	"testing"
)

func TestTypedPutGet(t *testing.T) {
	t.Parallel()
	tab := New()

	if err := tab.PutDouble("drive/speed", 0.5); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	if err := tab.PutBool("drive/enabled", true); err != nil {
		t.Fatalf("PutBool: %v", err)
	}
	if err := tab.PutString("robot/mode", "teleop"); err != nil {
		t.Fatalf("PutString: %v", err)
	}

	if got := tab.GetDouble("drive/speed", -1); got != 0.5 {
		t.Fatalf("GetDouble = %v, want 0.5", got)
	}
	if !tab.GetBool("drive/enabled", false) {
		t.Fatal("GetBool = false, want true")
	}
	if got := tab.GetString("robot/mode", ""); got != "teleop" {
		t.Fatalf("GetString = %q, want teleop", got)
	}
}

func TestKindIsFixedAtFirstPut(t *testing.T) {
	t.Parallel()
	tab := New()
	if err := tab.PutDouble("k", 1); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	err := tab.PutBool("k", true)
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("PutBool on double key: err = %v, want ErrKindMismatch", err)
	}
	// The original value survives the rejected put.
	if got := tab.GetDouble("k", -1); got != 1 {
		t.Fatalf("GetDouble after mismatch = %v, want 1", got)
	}
}

func TestGetDefaultOnMissingOrWrongKind(t *testing.T) {
	t.Parallel()
	tab := New()
	if got := tab.GetDouble("missing", 7); got != 7 {
		t.Fatalf("missing key default = %v, want 7", got)
	}
	if err := tab.PutString("s", "x"); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if got := tab.GetBool("s", true); got != true {
		t.Fatalf("wrong-kind default = %v, want true", got)
	}
}

func TestKeysSortedAndSnapshotStable(t *testing.T) {
	t.Parallel()
	tab := New()
	for _, k := range []string{"c", "a", "b"} {
		if err := tab.PutDouble(k, 1); err != nil {
			t.Fatalf("PutDouble(%q): %v", k, err)
		}
	}
	keys := tab.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("Keys = %v", keys)
	}

	snap := tab.Snapshot()
	if err := tab.PutDouble("a", 99); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	if snap["a"].Double != 1 {
		t.Fatalf("snapshot mutated by later put: %+v", snap["a"])
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	t.Parallel()
	tab := New()
	ch, unsub := tab.Subscribe(4)
	defer unsub()

	if err := tab.PutDouble("k", 1); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	u := <-ch
	if u.Key != "k" || u.Value.Kind != KindDouble || u.Value.Double != 1 {
		t.Fatalf("update = %+v", u)
	}

	// Re-putting the same value is not a change and produces no update.
	if err := tab.PutDouble("k", 1); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	if err := tab.PutDouble("k", 2); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
	u = <-ch
	if u.Value.Double != 2 {
		t.Fatalf("expected the value-2 update, got %+v", u)
	}
}

func TestSlowSubscriberDropsUpdates(t *testing.T) {
	t.Parallel()
	tab := New()
	ch, unsub := tab.Subscribe(1)
	defer unsub()

	for i := 0; i < 10; i++ {
		if err := tab.PutDouble("k", float64(i)); err != nil {
			t.Fatalf("PutDouble: %v", err)
		}
	}
	// Buffer of one: exactly the first update is retained, the rest dropped.
	u := <-ch
	if u.Value.Double != 0 {
		t.Fatalf("retained update = %+v, want value 0", u)
	}
	select {
	case extra := <-ch:
		if extra.Key != "" {
			t.Fatalf("unexpected buffered update %+v", extra)
		}
	default:
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	tab := New()
	_, unsub := tab.Subscribe(1)
	unsub()
	unsub()
	// Publishing after unsubscribe must not panic.
	if err := tab.PutDouble("k", 1); err != nil {
		t.Fatalf("PutDouble: %v", err)
	}
}

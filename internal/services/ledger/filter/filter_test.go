package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParseEventFilter_TypeEquals(t *testing.T) {
	cond, err := ParseEventFilter(`type = "randomness.fulfilled"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "event_type = ?" {
		t.Errorf("expected 'event_type = ?', got %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"randomness.fulfilled"}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseEventFilter_Empty(t *testing.T) {
	cond, err := ParseEventFilter(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseEventFilter_AndOr(t *testing.T) {
	cond, err := ParseEventFilter(`type = "randomness.requested" AND requester = "alice"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(event_type = ? AND requester = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"randomness.requested", "alice"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseEventFilter(`requester = "alice" OR requester = "bob"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(requester = ? OR requester = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseEventFilter_RequestID(t *testing.T) {
	cond, err := ParseEventFilter(`request_id >= 2`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "request_id >= ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{int64(2)}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseEventFilter_EntityHashIsNormalized(t *testing.T) {
	cond, err := ParseEventFilter(`entity_hash = "0x8ABF15CC4B8FB7D1FF68ADD19AEEE17309CDAF2C54416B836F710E6C76CC7D40"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	want := "8abf15cc4b8fb7d1ff68add19aeee17309cdaf2c54416b836f710e6c76cc7d40"
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v, want %s", cond.Params, want)
	}

	if _, err := ParseEventFilter(`entity_hash = "nope"`); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestParseEventFilter_Timestamp(t *testing.T) {
	cond, err := ParseEventFilter(`ts > timestamp("2026-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "occurred_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v, want %d", cond.Params, want)
	}
}

func TestParseEventFilter_InvalidField(t *testing.T) {
	if _, err := ParseEventFilter(`unknown = "x"`); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseEventFilter_InvalidValueFunc(t *testing.T) {
	if _, err := ParseEventFilter(`ts = duration("1h")`); err == nil {
		t.Fatal("expected error for unsupported value function")
	}
}

func TestParseEventFilter_InvalidTimestamp(t *testing.T) {
	if _, err := ParseEventFilter(`ts = timestamp("not-a-time")`); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}

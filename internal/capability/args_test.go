package capability

import "testing"

func TestStringArg(t *testing.T) {
	args := map[string]any{"s": "hello", "n": 42.0, "nil": nil}

	if got := StringArg(args, "s", "d"); got != "hello" {
		t.Errorf("StringArg = %q", got)
	}
	if got := StringArg(args, "missing", "d"); got != "d" {
		t.Errorf("missing key = %q, want default", got)
	}
	if got := StringArg(args, "n", "d"); got != "d" {
		t.Errorf("wrong type = %q, want default", got)
	}
	if got := StringArg(args, "nil", "d"); got != "d" {
		t.Errorf("null value = %q, want default", got)
	}
	if got := StringArg(nil, "s", "d"); got != "d" {
		t.Errorf("nil args = %q, want default", got)
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{
		"f":    800.0, // JSON numbers decode as float64
		"i":    7,
		"frac": 1.5,
		"s":    "800",
		"nil":  nil,
	}

	if got := IntArg(args, "f", 1); got != 800 {
		t.Errorf("float64 = %d", got)
	}
	if got := IntArg(args, "i", 1); got != 7 {
		t.Errorf("int = %d", got)
	}
	if got := IntArg(args, "frac", 1); got != 1 {
		t.Errorf("fractional = %d, want default", got)
	}
	if got := IntArg(args, "s", 1); got != 1 {
		t.Errorf("string = %d, want default", got)
	}
	if got := IntArg(args, "missing", 1); got != 1 {
		t.Errorf("missing = %d, want default", got)
	}
	if got := IntArg(args, "nil", 1); got != 1 {
		t.Errorf("null = %d, want default", got)
	}
}

func TestBoolArg(t *testing.T) {
	args := map[string]any{"b": false, "s": "true", "nil": nil}

	if got := BoolArg(args, "b", true); got {
		t.Error("explicit false ignored")
	}
	if got := BoolArg(args, "s", true); !got {
		t.Error("wrong type should yield default")
	}
	if got := BoolArg(args, "missing", true); !got {
		t.Error("missing should yield default")
	}
	if got := BoolArg(args, "nil", true); !got {
		t.Error("null should yield default")
	}
}

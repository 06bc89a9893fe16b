package expr

import "testing"

func TestEvalArithmeticAndPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want interface{}
	}{
		{"1 + 2 * 3", 7.0},
		{"(1 + 2) * 3", 9.0},
		{"10 - 2 - 3", 5.0},
		{"true && false || true", true},
		{"2 > 1 && 3 > 2", true},
		{"-5", -5.0},
		{"1 - -5", 6.0},
		{"count(null)", 0.0},
	}
	for _, tt := range tests {
		got, err := Eval(tt.expr, nil)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalVariableResolution(t *testing.T) {
	vars := MapVars{"x": 5.0, "name": "alice"}

	got, err := Eval("x == 5", vars)
	if err != nil || got != true {
		t.Fatalf("x == 5: got %v, err %v", got, err)
	}

	if _, err := Eval("missing_var", vars); err == nil {
		t.Fatal("expected unresolved variable error")
	}
}

func TestEvalFunctionCalls(t *testing.T) {
	vars := MapVars{"items": []interface{}{1.0, 2.0, 3.0}}

	got, err := Eval("count(items)", vars)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if got != 3.0 {
		t.Errorf("count(items) = %v, want 3", got)
	}

	got, err = Eval(`find_in(items2, "id", 2)`, MapVars{
		"items2": []interface{}{
			map[string]interface{}{"id": 1.0, "name": "a"},
			map[string]interface{}{"id": 2.0, "name": "b"},
		},
	})
	if err != nil {
		t.Fatalf("find_in: %v", err)
	}
	m, ok := got.(map[string]interface{})
	if !ok || m["name"] != "b" {
		t.Errorf("find_in returned %#v", got)
	}
}

func TestSplitTopLevelCommasEmptyArgList(t *testing.T) {
	parts, err := splitTopLevelCommas("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("expected zero args, got %v", parts)
	}
}

func TestInterpolateNonRecursive(t *testing.T) {
	vars := MapVars{"A": "{{B}}", "B": "final"}
	got, err := Interpolate("{{A}}", vars)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	if got != "{{B}}" {
		t.Errorf("Interpolate should not re-scan replacements, got %q", got)
	}
}

func TestInterpolateTolerantLeavesMissingPlaceholder(t *testing.T) {
	got := InterpolateTolerant("https://ex/{{x}}/{{y}}", MapVars{"x": "1"})
	if got != "https://ex/1/{{y}}" {
		t.Errorf("got %q", got)
	}
	if !HasPlaceholder(got) {
		t.Error("expected remaining placeholder to be detected")
	}
}

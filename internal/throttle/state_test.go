package throttle

import "testing"

func TestCombine_EmptyIsDisabledNoUnknown(t *testing.T) {
	enabled, hasUnknown := Combine(nil)
	if enabled || hasUnknown {
		t.Errorf("Combine(nil) = (%v, %v), want (false, false)", enabled, hasUnknown)
	}
}

func TestCombine_AnyEnabledSetsEnabled(t *testing.T) {
	enabled, hasUnknown := Combine([]State{Disabled, Enabled, Disabled})
	if !enabled {
		t.Error("expected enabled=true")
	}
	if hasUnknown {
		t.Error("expected hasUnknown=false")
	}
}

func TestCombine_AnyUnknownSetsHasUnknown(t *testing.T) {
	enabled, hasUnknown := Combine([]State{Disabled, Unknown})
	if enabled {
		t.Error("expected enabled=false")
	}
	if !hasUnknown {
		t.Error("expected hasUnknown=true")
	}
}

func TestCombine_EnabledAndUnknownBothSet(t *testing.T) {
	enabled, hasUnknown := Combine([]State{Enabled, Unknown})
	if !enabled || !hasUnknown {
		t.Errorf("Combine = (%v, %v), want (true, true)", enabled, hasUnknown)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{Unknown: "Unknown", Enabled: "Enabled", Disabled: "Disabled", State(42): "Unknown"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

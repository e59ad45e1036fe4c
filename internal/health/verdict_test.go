package health

import "testing"

func TestCombine_EmptyIsUnknown(t *testing.T) {
	if got := Combine(nil); got != Unknown {
		t.Errorf("Combine(nil) = %v, want Unknown", got)
	}
}

func TestCombine_AllUnknown(t *testing.T) {
	if got := Combine([]Verdict{Unknown, Unknown}); got != Unknown {
		t.Errorf("Combine(all unknown) = %v, want Unknown", got)
	}
}

func TestCombine_AnyOverloadedWins(t *testing.T) {
	if got := Combine([]Verdict{Ok, Overloaded, Unknown}); got != Overloaded {
		t.Errorf("Combine = %v, want Overloaded", got)
	}
}

func TestCombine_OkWhenNoOverloadedAndNotAllUnknown(t *testing.T) {
	if got := Combine([]Verdict{Ok, Unknown}); got != Ok {
		t.Errorf("Combine = %v, want Ok", got)
	}
	if got := Combine([]Verdict{Ok, Ok}); got != Ok {
		t.Errorf("Combine = %v, want Ok", got)
	}
}

func TestVerdict_String(t *testing.T) {
	cases := map[Verdict]string{Unknown: "Unknown", Ok: "Ok", Overloaded: "Overloaded", Verdict(99): "Unknown"}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", v, got, want)
		}
	}
}

package clock

import "testing"

func TestReal_NowAdvances(t *testing.T) {
	c := Real()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Errorf("Now() went backwards: %v then %v", a, b)
	}
}

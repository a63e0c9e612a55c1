package clock

import "testing"

func TestClockAdvance(t *testing.T) {
	c := New()
	if c.Tick() != 0 || c.Now() != 0 {
		t.Fatal("new clock must start at zero")
	}

	c.Advance(1.0 / 60)
	c.Advance(1.0 / 60)

	if c.Tick() != 2 {
		t.Errorf("expected tick 2, got %d", c.Tick())
	}
	want := 2.0 / 60
	if diff := c.Now() - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected elapsed %f, got %f", want, c.Now())
	}
}

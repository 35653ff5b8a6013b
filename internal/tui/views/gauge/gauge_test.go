package gauge

import (
	"strings"
	"testing"
)

func TestSpringSettlesOnValue(t *testing.T) {
	m := New()
	m.Width = 60

	if cmd := m.SetValue(40); cmd == nil {
		t.Fatal("SetValue() should start the animation")
	}
	if cmd := m.SetValue(50); cmd != nil {
		t.Error("SetValue() while animating should not start a second ticker")
	}

	for i := 0; i < 10*fps && m.Animating(); i++ {
		m, _ = m.Update(FrameMsg{})
	}

	if m.Animating() {
		t.Fatal("spring did not settle within 10s of frames")
	}
	if m.Position() != 50 {
		t.Errorf("Position() = %f, want 50", m.Position())
	}
}

func TestUpdateIgnoresFramesWhenIdle(t *testing.T) {
	m := New()
	m, cmd := m.Update(FrameMsg{})
	if cmd != nil {
		t.Error("idle gauge should not schedule frames")
	}
	if m.Position() != 0 {
		t.Errorf("Position() = %f, want 0", m.Position())
	}
}

func TestViewBeforeFirstValue(t *testing.T) {
	m := New()
	if v := m.View(); !strings.Contains(v, "waiting") {
		t.Errorf("View() = %q, want waiting hint", v)
	}
}

func TestViewShowsValueAndRange(t *testing.T) {
	m := New()
	m.Width = 40
	m.SetValue(-12)
	m.SetValue(30)

	v := m.View()
	for _, want := range []string{"AVERAGE", "30", "-12"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q:\n%s", want, v)
		}
	}
}

package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func feed(samples []Sample, tail error) Source {
	i := 0
	return func() (Sample, error) {
		if i >= len(samples) {
			return Sample{}, tail
		}
		i++
		return samples[i-1], nil
	}
}

func TestUpdateSamples(t *testing.T) {
	src := feed([]Sample{
		{Position: 1, Target: 10, Moving: true, Direction: "forward"},
		{Position: 10, Target: 10, StepNumber: 10, Direction: "idle"},
	}, ErrDone)
	var model tea.Model = New("motor0", src, time.Millisecond, 20)

	var cmd tea.Cmd
	model, cmd = model.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("no follow-up tick after a sample")
	}
	if !strings.Contains(model.View(), "moving") {
		t.Errorf("view while moving:\n%s", model.View())
	}

	model, _ = model.Update(tickMsg(time.Now()))
	m := model.(Model)
	if m.Last().Position != 10 || m.count != 2 {
		t.Errorf("last = %+v count = %d", m.Last(), m.count)
	}
	if !strings.Contains(m.View(), "position 10  target 10  step 10") {
		t.Errorf("view:\n%s", m.View())
	}

	model, cmd = model.Update(tickMsg(time.Now()))
	if cmd != nil {
		t.Error("ticking continued after ErrDone")
	}
	if !model.(Model).done || !strings.Contains(model.View(), "finished") {
		t.Errorf("view after ErrDone:\n%s", model.View())
	}
}

func TestUpdateError(t *testing.T) {
	src := feed(nil, errors.New("link timeout"))
	model, cmd := New("remote", src, time.Millisecond, 0).Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("error stopped the ticker")
	}
	if !strings.Contains(model.View(), "link timeout") {
		t.Errorf("view:\n%s", model.View())
	}
}

func TestQuitAndResize(t *testing.T) {
	var model tea.Model = New("m", feed(nil, ErrDone), time.Millisecond, 50)
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m := model.(Model)
	if w, h := m.chartSize(); w != 116 || h != 33 {
		t.Errorf("chartSize() = %d, %d, want 116, 33", w, h)
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !model.(Model).quitting {
		t.Error("q did not quit")
	}
	if model.View() != "" {
		t.Errorf("view after quit = %q", model.View())
	}
}

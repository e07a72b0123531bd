package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
)

func newTestModel(steps []Step) *stepModel {
	return &stepModel{
		ctx:     context.Background(),
		cancel:  func() {},
		steps:   steps,
		spinner: spinner.New(),
	}
}

func TestStepModelInit(t *testing.T) {
	m := newTestModel([]Step{
		{Title: "validate configuration", Run: func(ctx context.Context, sub func(string)) error { return nil }},
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error { return nil }},
	})
	m.Init()
	if m.text != "validate configuration" {
		t.Errorf("Init: text = %q", m.text)
	}
	if m.current != 0 {
		t.Errorf("Init: current = %d, want 0", m.current)
	}
}

func TestStepModelSubText(t *testing.T) {
	m := newTestModel([]Step{
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error { return nil }},
	})
	m.text = "start engine"
	model, _ := m.Update(subTextMsg{text: "waiting for helper"})
	r := model.(*stepModel)
	if r.text != "waiting for helper" {
		t.Errorf("text = %q", r.text)
	}
}

func TestStepModelAdvance(t *testing.T) {
	m := newTestModel([]Step{
		{Title: "validate configuration", Run: func(ctx context.Context, sub func(string)) error { return nil }},
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error { return nil }},
	})
	m.text = "validate configuration"
	model, _ := m.Update(stepDoneMsg{index: 0})
	r := model.(*stepModel)
	if r.current != 1 {
		t.Errorf("current = %d, want 1", r.current)
	}
	if r.text != "start engine" {
		t.Errorf("text = %q", r.text)
	}
	if len(r.done) != 1 || r.done[0] != "validate configuration" {
		t.Errorf("done = %v", r.done)
	}
}

func TestStepModelFailureStops(t *testing.T) {
	m := newTestModel([]Step{
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error { return nil }},
	})
	m.text = "start engine"
	wantErr := errors.New("engine exited during startup")
	model, _ := m.Update(stepDoneMsg{index: 0, err: wantErr})
	r := model.(*stepModel)
	if r.err != wantErr {
		t.Errorf("err = %v, want %v", r.err, wantErr)
	}
}

func TestStepModelView(t *testing.T) {
	m := newTestModel([]Step{
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error { return nil }},
	})
	m.text = "start engine"
	if view := m.View(); !strings.Contains(view, "start engine") {
		t.Errorf("View = %q", view)
	}

	m.done = append(m.done, "start engine")
	m.current = 1
	m.text = ""
	if view := m.View(); !strings.Contains(view, "✔") {
		t.Errorf("View = %q, want checkmark for completed step", view)
	}
}

func TestRunStepsPlainOrder(t *testing.T) {
	var order []string
	steps := []Step{
		{Title: "validate configuration", Run: func(ctx context.Context, sub func(string)) error {
			order = append(order, "validate")
			return nil
		}},
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error {
			order = append(order, "start")
			return nil
		}},
	}
	if err := runStepsPlain(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "validate" || order[1] != "start" {
		t.Errorf("order = %v", order)
	}
}

func TestRunStepsPlainStopsAtFailure(t *testing.T) {
	wantErr := errors.New("helper unavailable")
	ran := 0
	steps := []Step{
		{Title: "ok", Run: func(ctx context.Context, sub func(string)) error { ran++; return nil }},
		{Title: "bad", Run: func(ctx context.Context, sub func(string)) error { ran++; return wantErr }},
		{Title: "skipped", Run: func(ctx context.Context, sub func(string)) error { ran++; return nil }},
	}
	if err := runStepsPlain(context.Background(), steps); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if ran != 2 {
		t.Errorf("ran = %d steps, want 2", ran)
	}
}

func TestRunStepsPlainSubText(t *testing.T) {
	steps := []Step{
		{Title: "start engine", Run: func(ctx context.Context, sub func(string)) error {
			sub("waiting for helper")
			return nil
		}},
	}
	if err := runStepsPlain(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunStepsEmpty(t *testing.T) {
	if err := RunSteps(context.Background(), nil); err != nil {
		t.Fatalf("RunSteps(nil) = %v", err)
	}
}

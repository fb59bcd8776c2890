package reconcile

import (
	"reflect"
	"testing"
)

func recordingChart(calls *[]string) *sessionChart {
	record := func(name string) func() {
		return func() { *calls = append(*calls, name) }
	}
	return newSessionChart(sessionHooks{
		enterPlaying: record("+playing"),
		exitPlaying:  record("-playing"),
		enterBase:    record("+base"),
		exitBase:     record("-base"),
		enterOverlay: record("+overlay"),
		exitOverlay:  record("-overlay"),
	})
}

func TestSessionChartTransitions(t *testing.T) {
	var calls []string
	chart := recordingChart(&calls)

	if chart.flags() != 0 {
		t.Fatalf("expected idle chart, got %b", chart.flags())
	}
	if chart.fire(chart.openEvt) || chart.fire(chart.endEvt) {
		t.Fatalf("expected idle chart to ignore open and end")
	}

	if !chart.fire(chart.beginEvt) || chart.flags() != Playing {
		t.Fatalf("expected Playing after begin, got %b", chart.flags())
	}
	if chart.fire(chart.beginEvt) || chart.fire(chart.closeEvt) {
		t.Fatalf("expected Playing to ignore begin and close")
	}
	if !chart.fire(chart.openEvt) || chart.flags() != Playing|OverlayActive {
		t.Fatalf("expected overlay after open, got %b", chart.flags())
	}
	if chart.fire(chart.openEvt) {
		t.Fatalf("expected second open to be ignored")
	}
	if !chart.fire(chart.endEvt) || chart.flags() != 0 {
		t.Fatalf("expected idle after end, got %b", chart.flags())
	}

	want := []string{"+playing", "+base", "-base", "+overlay", "-overlay", "-playing"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected hooks %v, got %v", want, calls)
	}
}

func TestSessionChartCloseRestoresBase(t *testing.T) {
	var calls []string
	chart := recordingChart(&calls)
	chart.fire(chart.beginEvt)
	chart.fire(chart.openEvt)
	calls = nil

	if !chart.fire(chart.closeEvt) || chart.flags() != Playing {
		t.Fatalf("expected Playing after close, got %b", chart.flags())
	}
	if want := []string{"-overlay", "+base"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected hooks %v, got %v", want, calls)
	}
}

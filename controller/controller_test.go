package controller

import (
	"errors"
	"sort"
	"testing"
	"time"

	"tagscribe/loop"
	"tagscribe/tagio"
)

type fakeTimer struct {
	d  time.Duration
	fn func()
}

type fakeScheduler struct {
	next   loop.TimerID
	timers map[loop.TimerID]fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(map[loop.TimerID]fakeTimer)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) loop.TimerID {
	s.next++
	s.timers[s.next] = fakeTimer{d: d, fn: fn}
	return s.next
}

func (s *fakeScheduler) Cancel(id loop.TimerID) bool {
	_, ok := s.timers[id]
	delete(s.timers, id)
	return ok
}

// fire runs every pending timer with duration d, oldest first.
func (s *fakeScheduler) fire(d time.Duration) int {
	var ids []loop.TimerID
	for id, t := range s.timers {
		if t.d == d {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := s.timers[id]
		delete(s.timers, id)
		t.fn()
	}
	return len(ids)
}

type fakeScan struct {
	starts, stops int
	err           error
}

func (f *fakeScan) StartScan() error { f.starts++; return f.err }
func (f *fakeScan) StopScan() error  { f.stops++; return nil }

type fakeWriter struct {
	values []string
	errs   []error
}

func (f *fakeWriter) Write(tag tagio.Tag, text string) error {
	f.values = append(f.values, text)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type harness struct {
	c      *Controller
	scan   *fakeScan
	writer *fakeWriter
	sched  *fakeScheduler
	states []State
	writes []WriteEvent
}

func newHarness() *harness {
	h := &harness{scan: &fakeScan{}, writer: &fakeWriter{}, sched: newFakeScheduler()}
	h.c = New(h.scan, h.writer, h.sched, Options{})
	h.c.OnState(func(s State) { h.states = append(h.states, s) })
	h.c.OnWrite(func(e WriteEvent) { h.writes = append(h.writes, e) })
	return h
}

var anyTag = tagio.Unsupported("04a1b2c3", "test")

func TestScannerCycle(t *testing.T) {
	h := newHarness()
	c := h.c

	c.StartScan()
	if s := c.State(); s.Phase != Scanning || s.Status != StatusScanning || h.scan.starts != 1 {
		t.Fatalf("after StartScan: %+v starts=%d", s, h.scan.starts)
	}

	c.HandleDecode("4607001771234", true)
	s := c.State()
	if s.Phase != AwaitingTag || s.Pending() != "4607001771234" || s.Status != StatusPresentTag {
		t.Fatalf("after decode: %+v", s)
	}

	c.HandleTag(anyTag)
	if len(h.writer.values) != 1 || h.writer.values[0] != "4607001771234" {
		t.Fatalf("writer got %q", h.writer.values)
	}
	s = c.State()
	if s.Phase != Writing || !s.Success || s.Status != StatusWritten {
		t.Fatalf("after write: %+v", s)
	}
	if s.Pending() != "" {
		t.Fatalf("pending after write = %q", s.Pending())
	}

	if n := h.sched.fire(DefaultSuccessDuration); n != 1 {
		t.Fatalf("fired %d hide timers", n)
	}
	if c.State().Success {
		t.Fatal("success indicator still visible")
	}

	if n := h.sched.fire(DefaultRestartDelay); n != 1 {
		t.Fatalf("fired %d restart timers", n)
	}
	if s := c.State(); s.Phase != Scanning || h.scan.starts != 2 {
		t.Fatalf("after restart: %+v starts=%d", s, h.scan.starts)
	}

	if len(h.writes) != 1 || h.writes[0].Result != "ok" || h.writes[0].ID == "" || h.writes[0].TagUID != "04a1b2c3" {
		t.Fatalf("write events %+v", h.writes)
	}
}

func TestRestartGuard(t *testing.T) {
	h := newHarness()
	c := h.c

	c.StartScan()
	c.HandleDecode("A", true)
	c.HandleTag(anyTag)
	c.StopScan()

	h.sched.fire(DefaultRestartDelay)
	if h.scan.starts != 1 {
		t.Fatalf("scan restarted after StopScan: starts=%d", h.scan.starts)
	}
	if c.State().Phase != Idle {
		t.Fatalf("phase = %s", c.State().Phase)
	}
}

func TestRestartSkippedAfterModeChange(t *testing.T) {
	h := newHarness()
	c := h.c

	c.StartScan()
	c.HandleDecode("A", true)
	c.HandleTag(anyTag)
	c.SetMode(ListMode)

	h.sched.fire(DefaultRestartDelay)
	if h.scan.starts != 1 {
		t.Fatalf("scan restarted in list mode: starts=%d", h.scan.starts)
	}
}

func TestDecodeIgnored(t *testing.T) {
	h := newHarness()
	c := h.c

	c.HandleDecode("early", true)
	if c.State().LastScan != "" {
		t.Fatal("decode accepted while idle")
	}

	c.StartScan()
	c.HandleDecode("", true)
	c.HandleDecode("bad", false)
	if s := c.State(); s.Phase != Scanning || s.LastScan != "" {
		t.Fatalf("empty or failed decode changed state: %+v", s)
	}
}

func TestTagIgnoredWithoutPending(t *testing.T) {
	h := newHarness()
	c := h.c

	c.HandleTag(anyTag)
	c.StartScan()
	c.HandleTag(anyTag)
	c.SetMode(ListMode)
	c.HandleTag(anyTag)
	c.LoadList([]string{"X"})
	c.HandleTag(anyTag) // loaded but not started

	if len(h.writer.values) != 0 {
		t.Fatalf("writer called with %q", h.writer.values)
	}
}

func TestWriteFailures(t *testing.T) {
	tests := []struct {
		err    error
		status string
		result string
	}{
		{tagio.ErrUnsupported, StatusUnsupported, "unsupported"},
		{tagio.ErrCapacityExceeded, StatusTooLong, "too_long"},
		{tagio.ErrWriteFailed, StatusWriteError, "failed"},
		{errors.New("boom"), StatusWriteError, "failed"},
	}

	for _, tt := range tests {
		h := newHarness()
		c := h.c
		h.writer.errs = []error{tt.err}

		c.StartScan()
		c.HandleDecode("A", true)
		c.HandleTag(anyTag)

		s := c.State()
		if s.Status != tt.status || !s.Fault || s.Success {
			t.Errorf("%v: state %+v", tt.err, s)
		}
		if s.Phase != AwaitingTag || s.Pending() != "A" {
			t.Errorf("%v: retry not possible, phase=%s pending=%q", tt.err, s.Phase, s.Pending())
		}
		if len(h.sched.timers) != 0 {
			t.Errorf("%v: %d timers scheduled after failure", tt.err, len(h.sched.timers))
		}
		if len(h.writes) != 1 || h.writes[0].Result != tt.result {
			t.Errorf("%v: write events %+v", tt.err, h.writes)
		}

		// presenting the tag again retries the same value
		c.HandleTag(anyTag)
		if len(h.writer.values) != 2 || h.writer.values[1] != "A" {
			t.Errorf("%v: retry wrote %q", tt.err, h.writer.values)
		}
	}
}

func TestScannerStartError(t *testing.T) {
	h := newHarness()
	h.scan.err = errors.New("no device")
	h.c.StartScan()
	if s := h.c.State(); s.Phase != Idle || s.Status != StatusScannerError {
		t.Fatalf("state %+v", s)
	}
}

func TestListScenario(t *testing.T) {
	h := newHarness()
	c := h.c

	c.LoadList([]string{"X1", "X2"})
	c.SetMode(ListMode)
	c.StartList()

	s := c.State()
	if s.Pending() != "X1" || s.Progress() != "1 of 2" {
		t.Fatalf("after start: pending=%q progress=%q", s.Pending(), s.Progress())
	}

	c.HandleTag(anyTag)
	s = c.State()
	if s.Pending() != "X2" || s.Progress() != "2 of 2" || s.Status != statusPresentFor("X2") {
		t.Fatalf("after first write: %+v", s)
	}
	if !s.Success {
		t.Fatal("success indicator not raised")
	}

	c.HandleTag(anyTag)
	s = c.State()
	if s.ListActive || s.Status != StatusListComplete || s.ListPosition != 1 {
		t.Fatalf("after second write: %+v", s)
	}
	if s.Pending() != "" {
		t.Fatalf("pending after completion = %q", s.Pending())
	}

	c.HandleTag(anyTag)
	if len(h.writer.values) != 2 || h.writer.values[0] != "X1" || h.writer.values[1] != "X2" {
		t.Fatalf("writer got %q", h.writer.values)
	}
	if h.scan.starts != 0 {
		t.Fatal("list mode restarted the scanner")
	}
}

func TestListExhaustion(t *testing.T) {
	for n := 1; n <= 6; n++ {
		h := newHarness()
		c := h.c
		items := make([]string, n)
		for i := range items {
			items[i] = string(rune('a' + i))
		}
		c.LoadList(items)
		c.SetMode(ListMode)
		c.StartList()
		for i := 0; i < n; i++ {
			c.HandleTag(anyTag)
		}
		s := c.State()
		if s.ListActive || s.ListPosition != n-1 {
			t.Errorf("n=%d: active=%v position=%d", n, s.ListActive, s.ListPosition)
		}
		for i, v := range h.writer.values {
			if v != items[i] {
				t.Errorf("n=%d: write %d = %q", n, i, v)
			}
		}
	}
}

func TestListFailureKeepsPosition(t *testing.T) {
	h := newHarness()
	c := h.c
	h.writer.errs = []error{tagio.ErrWriteFailed}

	c.LoadList([]string{"X1", "X2"})
	c.SetMode(ListMode)
	c.StartList()
	c.HandleTag(anyTag)

	s := c.State()
	if s.Pending() != "X1" || s.Status != StatusWriteError || s.Phase != Idle {
		t.Fatalf("after failure: %+v", s)
	}
}

func TestStartListEmpty(t *testing.T) {
	h := newHarness()
	h.c.StartList()
	if s := h.c.State(); s.Status != StatusNoList || s.ListActive {
		t.Fatalf("state %+v", s)
	}
	h.c.LoadList(nil)
	if s := h.c.State(); s.Status != StatusListEmpty {
		t.Fatalf("state %+v", s)
	}
}

func TestStopList(t *testing.T) {
	h := newHarness()
	h.c.LoadList([]string{"a"})
	h.c.SetMode(ListMode)
	h.c.StartList()
	h.c.StopList()
	if s := h.c.State(); s.ListActive || s.Status != StatusReady || s.Pending() != "" {
		t.Fatalf("state %+v", s)
	}
}

func TestModeIsolation(t *testing.T) {
	// decodes in list mode do not touch the list value
	h := newHarness()
	c := h.c
	c.LoadList([]string{"X1", "X2"})
	c.SetMode(ListMode)
	c.StartList()
	c.StartScan()
	c.HandleDecode("BARCODE", true)
	if s := c.State(); s.Pending() != "X1" || s.LastScan != "" {
		t.Fatalf("decode changed list pending: %+v", s)
	}

	// list operations in scanner mode do not touch the scan value
	h = newHarness()
	c = h.c
	c.StartScan()
	c.HandleDecode("B", true)
	c.LoadList([]string{"Y1", "Y2"})
	c.StartList()
	c.Seek(1)
	c.StopList()
	c.StartList()
	if s := c.State(); s.Pending() != "B" {
		t.Fatalf("list operation changed scanner pending: %+v", s)
	}
	c.HandleTag(anyTag)
	if h.writer.values[0] != "B" {
		t.Fatalf("wrote %q", h.writer.values[0])
	}
}

func TestSeek(t *testing.T) {
	h := newHarness()
	c := h.c
	c.LoadList([]string{"a", "b", "c"})
	c.SetMode(ListMode)
	c.Seek(1)
	if c.State().ListPosition != 0 {
		t.Fatal("seek moved an inactive list")
	}
	c.StartList()
	c.Seek(2)
	if s := c.State(); s.Pending() != "c" || s.Progress() != "3 of 3" {
		t.Fatalf("after seek: %+v", s)
	}
	c.Seek(-1)
	if s := c.State(); s.Pending() != "b" {
		t.Fatalf("after seek back: %+v", s)
	}
}

func TestPublishOnlyOnChange(t *testing.T) {
	h := newHarness()
	c := h.c

	c.Publish()
	c.Publish()
	if len(h.states) != 1 {
		t.Fatalf("published %d times without change", len(h.states))
	}
	c.ToggleOrientation()
	c.SetMode(ScannerMode)
	if len(h.states) != 2 || !h.states[1].Flipped {
		t.Fatalf("states %+v", h.states)
	}
	c.ToggleMode()
	if h.states[len(h.states)-1].Mode != ListMode {
		t.Fatal("mode toggle not published")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"scanner": ScannerMode, "LIST": ListMode, " csv ": ListMode} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("nfc"); err == nil {
		t.Error("expected error")
	}
}

func TestWithRealWriter(t *testing.T) {
	sched := newFakeScheduler()
	c := New(&fakeScan{}, tagio.NewWriter("ru"), sched, Options{})
	c.LoadList([]string{"Склад-1", "Склад-2"})
	c.SetMode(ListMode)
	c.StartList()

	mem := tagio.NewMemoryTag(tagio.NTAG213, []byte{0x04, 1, 2, 3, 4, 5, 6})
	tag, err := tagio.ProbeType2("04010203040506", mem, tagio.NTAG213)
	if err != nil {
		t.Fatal(err)
	}
	c.HandleTag(tag)

	raw, err := mem.Message()
	if err != nil {
		t.Fatal(err)
	}
	msg, err := tagio.ParseMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	text, err := tagio.FirstText(msg)
	if err != nil || text != "Склад-1" {
		t.Fatalf("tag holds %q (%v)", text, err)
	}
	if c.State().Pending() != "Склад-2" {
		t.Fatalf("pending = %q", c.State().Pending())
	}
}

func TestListWriteDuringScannerRestart(t *testing.T) {
	h := newHarness()
	c := h.c

	c.StartScan()
	c.HandleDecode("B1", true)
	c.HandleTag(anyTag)
	c.LoadList([]string{"X1", "X2", "X3"})
	c.SetMode(ListMode)
	c.StartList()

	c.HandleTag(anyTag)
	s := c.State()
	if s.Phase != Idle || s.ListPosition != 1 {
		t.Fatalf("after list write: phase=%s pos=%d", s.Phase, s.ListPosition)
	}
	if n := h.sched.fire(DefaultRestartDelay); n != 0 {
		t.Fatalf("%d restart timers still pending", n)
	}

	c.Seek(1)
	if s := c.State(); s.ListPosition != 2 || s.Pending() != "X3" {
		t.Fatalf("after Seek(1): %+v", s)
	}
	if h.scan.starts != 1 {
		t.Fatalf("scanner restarted: starts=%d", h.scan.starts)
	}
}

func TestFailedListWriteDuringScannerRestart(t *testing.T) {
	h := newHarness()
	c := h.c

	c.StartScan()
	c.HandleDecode("B1", true)
	c.HandleTag(anyTag)
	c.LoadList([]string{"X1", "X2"})
	c.SetMode(ListMode)
	c.StartList()

	h.writer.errs = []error{errors.New("tag lost")}
	c.HandleTag(anyTag)
	if s := c.State(); s.Phase != Idle || !s.Fault || s.ListPosition != 0 {
		t.Fatalf("after failed list write: %+v", s)
	}
}

package main

import (
	"tagscribe/controller"
	"tagscribe/indicator"
	"tagscribe/tui"
	"tagscribe/video"
)

// publishState fans a state snapshot out to every surface. It runs on the
// event loop and must not block.
func (app *App) publishState(st controller.State) {
	app.mu.Lock()
	app.snapshot = st
	app.mu.Unlock()

	indicate(app.indicator, st)
	if app.display != nil {
		app.display.Show(frameFor(st))
	}
	app.mqtt.PublishState(st)
	app.server.BroadcastState(st)
	app.toTUI(tui.StateMsg(st))
}

func (app *App) publishWrite(ev controller.WriteEvent) {
	app.mqtt.PublishWrite(ev)
	app.server.BroadcastWrite(ev)
	app.toTUI(tui.WriteMsg(ev))
}

// toTUI drops msg when the console is not keeping up.
func (app *App) toTUI(msg any) {
	if app.tuiFeed == nil {
		return
	}
	select {
	case app.tuiFeed <- msg:
	default:
	}
}

// Snapshot implements server.Backend.
func (app *App) Snapshot() controller.State {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.snapshot
}

// indicate shows st on ind. Outcomes win over the phase.
func indicate(ind indicator.Indicator, st controller.State) {
	switch {
	case st.Success:
		ind.Success()
	case st.Fault:
		ind.Failure()
	case st.Phase == controller.Scanning:
		ind.Scanning()
	case st.Phase == controller.Writing:
		ind.Writing()
	case st.Pending() != "":
		ind.Waiting()
	default:
		ind.Idle()
	}
}

func frameFor(st controller.State) video.Frame {
	f := video.Frame{
		Title:   "Barcode",
		Value:   st.Pending(),
		Status:  st.Status,
		Success: st.Success,
		Fault:   st.Fault,
		Flipped: st.Flipped,
	}
	if st.Mode == controller.ListMode {
		f.Title = "List"
		f.Progress = st.Progress()
	} else if f.Value == "" && (st.Phase == controller.Writing || st.Success) {
		f.Value = st.LastScan
	}
	return f
}

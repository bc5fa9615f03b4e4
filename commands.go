package main

import (
	"errors"
	"fmt"
	"log"

	"tagscribe/command"
	"tagscribe/controller"
	"tagscribe/itemlist"
)

var errStopping = errors.New("shutting down")

// Submit queues cmd for the event loop. Safe from any goroutine except the
// loop itself.
func (app *App) Submit(cmd command.Command) error {
	if !app.loop.Post(func() { app.dispatch(cmd) }) {
		return errStopping
	}
	return nil
}

// submitLine parses and queues one operator command line.
func (app *App) submitLine(source, line string) {
	cmd, err := command.Parse(line)
	if errors.Is(err, command.ErrEmpty) {
		return
	}
	if err != nil {
		log.Printf("%s: %v", source, err)
		return
	}
	app.submitLogged(cmd)
}

func (app *App) submitLogged(cmd command.Command) {
	if err := app.Submit(cmd); err != nil {
		log.Printf("Command %q dropped: %v", cmd, err)
	}
}

// dispatch runs on the event loop.
func (app *App) dispatch(cmd command.Command) {
	log.Printf("Command: %s", cmd)
	ctrl := app.ctrl

	switch cmd.Kind {
	case command.Mode:
		if cmd.Arg == "" {
			ctrl.ToggleMode()
			return
		}
		m, err := controller.ParseMode(cmd.Arg)
		if err != nil {
			log.Printf("Command %q: %v", cmd, err)
			return
		}
		ctrl.SetMode(m)

	case command.Scan:
		switch cmd.Arg {
		case "start":
			ctrl.StartScan()
		case "stop":
			ctrl.StopScan()
		default:
			app.toggleScan()
		}

	case command.List:
		switch cmd.Arg {
		case "load":
			go app.loadList(cmd.Value)
		case "start":
			ctrl.StartList()
		case "stop":
			ctrl.StopList()
		default:
			app.toggleList()
		}

	case command.Flip:
		ctrl.ToggleOrientation()

	case command.Seek:
		ctrl.Seek(cmd.Delta)

	case command.Barcode:
		st := ctrl.State()
		if st.Mode == controller.ScannerMode && st.Phase != controller.Scanning {
			ctrl.StartScan()
		}
		// The decode callback posts back onto the loop
		go func() {
			if !app.trigger.Inject(cmd.Value) {
				log.Printf("Barcode %q ignored: scanner not armed", cmd.Value)
			}
		}()

	case command.Tag:
		// Present blocks until the controller has handled the tag
		go func() {
			if err := app.virtual.Present(cmd.Arg); err != nil {
				log.Printf("Virtual tag: %v", err)
			}
		}()

	default:
		log.Printf("Command %q: unhandled", cmd)
	}
}

func (app *App) toggleScan() {
	if app.ctrl.State().Phase == controller.Idle {
		app.ctrl.StartScan()
	} else {
		app.ctrl.StopScan()
	}
}

func (app *App) toggleList() {
	if app.ctrl.State().ListActive {
		app.ctrl.StopList()
	} else {
		app.ctrl.StartList()
	}
}

// togglePrimary is the knob press: it starts or stops whichever source the
// current mode uses.
func (app *App) togglePrimary() {
	if app.ctrl.State().Mode == controller.ListMode {
		app.toggleList()
	} else {
		app.toggleScan()
	}
}

// loadList reads path off the loop and hands the result to the controller.
func (app *App) loadList(path string) {
	items, err := itemlist.Load(path)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		app.loop.Post(func() { app.ctrl.LoadListError(err) })
		return
	}
	log.Printf("List: %d items from %s", len(items), path)
	app.loop.Post(func() { app.ctrl.LoadList(items) })
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"tagscribe/command"
	"tagscribe/controller"
	"tagscribe/eventpipe"
	"tagscribe/indicator"
	"tagscribe/loop"
	"tagscribe/mqtt"
	"tagscribe/panel"
	"tagscribe/scanner"
	"tagscribe/server"
	"tagscribe/tagio"
	"tagscribe/tui"
	"tagscribe/video"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	loop      *loop.Loop
	ctrl      *controller.Controller
	trigger   *scanner.Trigger
	source    tagio.Source
	virtual   *tagio.VirtualSource
	indicator indicator.Indicator
	display   *video.Display
	panel     *panel.Panel
	mqtt      *mqtt.Client
	pipe      *eventpipe.EventPipe
	server    *server.Server
	tuiFeed   chan any

	mu       sync.Mutex
	snapshot controller.State
}

func main() {
	fmt.Printf("tagscribe build %s\n", myBuild)

	cfgfile := flag.String("cfg", "tagscribe.yml", "Config file (empty for defaults)")
	useTUI := flag.Bool("tui", false, "Run the terminal console")
	listFile := flag.String("list", "", "Load this list file at startup")
	flag.Parse()

	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *listFile != "" {
		cfg.ListFile = *listFile
	}

	if *useTUI {
		// The console owns the terminal
		f, err := tea.LogToFile("tagscribe.log", "")
		if err != nil {
			log.Fatalf("Open log file: %v", err)
		}
		defer f.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, *useTUI)
	if err != nil {
		log.Fatalf("Init: %v", err)
	}

	// The loop outlives the signal so inputs can drain during shutdown
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		app.loop.Run(loopCtx)
		close(loopDone)
	}()
	app.start(ctx)

	if *useTUI {
		app.runTUI(ctx, stop)
	} else {
		<-ctx.Done()
	}

	fmt.Println("Shutting down...")
	app.shutdown()
	stopLoop()
	<-loopDone
	app.release()
	fmt.Println("Shutdown complete")
}

func newApp(cfg *Config, withTUI bool) (*App, error) {
	app := &App{
		cfg:  cfg,
		loop: loop.New(128),
	}
	if withTUI {
		app.tuiFeed = make(chan any, 32)
	}

	dec, err := scanner.New(cfg.Scanner)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	if dec == nil {
		log.Println("Scanner: no decoder configured, barcodes by command only")
	}
	app.trigger = scanner.NewTrigger(dec)

	app.ctrl = controller.New(app.trigger, tagio.NewWriter(cfg.Language), app.loop, cfg.options())
	app.snapshot = app.ctrl.State()

	// Initialize indicator (LEDs, neopixels)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		return nil, fmt.Errorf("indicator: %w", err)
	}
	app.indicator.ConnectionLost()

	if cfg.Video.Enabled {
		if !video.ScreenSupported() {
			return nil, fmt.Errorf("video enabled but screen support not compiled in")
		}
		app.display, err = video.New(cfg.Video)
		if err != nil {
			return nil, fmt.Errorf("display: %w", err)
		}
	}

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
		OnCommand:    func(line string) { app.submitLine("MQTT command", line) },
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}

	app.server = server.New(cfg.Server, app, myBuild)

	app.pipe, err = eventpipe.New(cfg.EventPipe, app.submitLogged)
	if err != nil {
		return nil, fmt.Errorf("event pipe: %w", err)
	}

	app.source, app.virtual = newTagSource(cfg.NFC)

	app.panel, err = panel.New(cfg.Panel, panel.Handlers{
		OnTurn: func(delta int) {
			app.submitLogged(command.Command{Kind: command.Seek, Delta: delta})
		},
		OnPress: func() {
			app.loop.Post(app.togglePrimary)
		},
		OnButton: func(line string) { app.submitLine("Panel button", line) },
	})
	if err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}

	app.ctrl.OnState(app.publishState)
	app.ctrl.OnWrite(app.publishWrite)
	app.trigger.SetDecodeCallback(func(value string, ok bool) {
		app.loop.Post(func() { app.ctrl.HandleDecode(value, ok) })
	})
	return app, nil
}

// start brings up the inputs and network surfaces. The loop must be running.
func (app *App) start(ctx context.Context) {
	onTag := func(tag tagio.Tag) {
		if !app.loop.Do(func() { app.ctrl.HandleTag(tag) }) {
			log.Printf("Tag %s dropped: shutting down", tag.UID())
		}
	}
	if err := app.virtual.Enable(onTag); err != nil {
		log.Printf("Virtual tags: %v", err)
	}
	if app.source != nil {
		if err := app.source.Enable(onTag); err != nil {
			log.Printf("NFC: %v", err)
		}
	}

	if err := app.server.Start(); err != nil {
		log.Printf("Remote panel: %v", err)
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	go app.mqtt.RunPing(ctx, mqtt.PingInterval)

	app.loop.Post(app.ctrl.Publish)
	if app.cfg.ListFile != "" {
		go app.loadList(app.cfg.ListFile)
	}
}

func (app *App) runTUI(ctx context.Context, stop context.CancelFunc) {
	p := tea.NewProgram(tui.New(app.Snapshot(), app.Submit), tea.WithAltScreen())

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case msg := <-app.tuiFeed:
				p.Send(msg)
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		log.Printf("Console: %v", err)
	}
	stop()
}

func (app *App) onMQTTConnect() {
	app.loop.Post(func() {
		app.indicator.SetConnected()
		indicate(app.indicator, app.ctrl.State())
	})
}

func (app *App) onMQTTDisconnect() {
	app.loop.Post(func() {
		app.indicator.ConnectionLost()
		indicate(app.indicator, app.ctrl.State())
	})
}

// shutdown stops every input while the loop is still running, so blocked
// callbacks can complete.
func (app *App) shutdown() {
	if app.source != nil {
		app.source.Close()
	}
	app.virtual.Close()
	app.trigger.Close()
	if app.pipe != nil {
		app.pipe.Close()
	}
	if app.panel != nil {
		app.panel.Release()
	}
	app.server.Stop()
	app.mqtt.Disconnect()
}

// release runs after the loop has stopped.
func (app *App) release() {
	app.loop.CancelAll()
	app.indicator.Shutdown()
	if err := app.indicator.Release(); err != nil {
		log.Printf("Indicator release: %v", err)
	}
	if app.display != nil {
		app.display.Release()
	}
}

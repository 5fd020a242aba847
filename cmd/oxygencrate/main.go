// Command oxygencrate is the desktop shell. The window loop is the UI
// thread; a separate goroutine plays the application loop and only polls
// the shell for characters and imported files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"

	"oxygencrate/cmd/oxygencrate/internal/theme"
	"oxygencrate/cmd/oxygencrate/internal/ui"
	"oxygencrate/internal/config"
	"oxygencrate/internal/importer"
	"oxygencrate/internal/logging"
	"oxygencrate/internal/portal"
	"oxygencrate/internal/shell"
	"oxygencrate/internal/uithread"
)

const pollInterval = 16 * time.Millisecond

var configPath = flag.String("config", "", "path to config file")

func main() {
	flag.Parse()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("OxygenCrate"))
		w.Option(app.Size(unit.Dp(800), unit.Dp(600)))

		if err := run(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func run(w *app.Window) error {
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	defer loader.Close()

	looper := uithread.NewLooper(uithread.WithWake(w.Invalidate))
	defer looper.Close()

	keyboard := ui.NewSoftKeyboard(w.Invalidate)

	// The picker reports back through the shell, which does not exist yet.
	var s *shell.Shell
	launcher, picker, closeLauncher := newLauncher(cfg, func(res importer.Result) { s.DeliverResult(res) })
	defer closeLauncher()

	s, err = shell.FromConfig(cfg, shell.Host{
		Poster:   looper,
		Launcher: launcher,
		Resolver: importer.FileResolver{},
		Keyboard: keyboard,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	logger := s.Logger()
	stopMetrics := serveMetrics(cfg, s, logger)
	defer stopMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchConfig(ctx, loader, s, picker, logger)

	feed := &ui.Feed{}
	go poll(ctx, s, feed, w.Invalidate)

	view := ui.NewView(theme.NewTheme(), s, feed, keyboard)

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			looper.Drain()

			gtx := app.NewContext(&ops, e)
			view.Layout(gtx)
			e.Frame(gtx.Ops)
		default:
			if parent, ok := parentWindow(e); ok && picker != nil {
				picker.SetParentWindow(parent)
			}
		}
	}
}

// watchConfig follows the configuration file. A valid new version
// adjusts the log level and the picker dialog; other changes wait for a
// restart.
func watchConfig(ctx context.Context, loader *config.Loader, s *shell.Shell, picker *portal.Picker, logger *logging.Logger) {
	loader.OnChange(func(cfg *config.Config) {
		restart, err := s.Reconfigure(cfg)
		if err != nil {
			logger.Warn("ignoring reloaded config", slog.Any("error", err))
			return
		}
		if picker != nil {
			picker.Configure(cfg.Portal.Title, cfg.Portal.Modal)
		}
		if len(restart) > 0 {
			logger.Warn("config changes need a restart", slog.Any("sections", restart))
		}
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload unavailable", slog.String("path", loader.Path()), slog.Any("error", err))
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				logger.Warn("config reload failed", slog.Any("error", err))
			}
		}
	}()
}

// poll is the application loop. It never touches the window except to
// ask for a redraw.
func poll(ctx context.Context, s *shell.Shell, feed *ui.Feed, invalidate func()) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		changed := false
		for r := s.PollCharacter(); r != 0; r = s.PollCharacter() {
			feed.AddChar(r)
			changed = true
		}
		for p := s.PollSelectedFile(); p != ""; p = s.PollSelectedFile() {
			feed.AddImport(p)
			changed = true
		}
		if changed {
			invalidate()
		}
	}
}

// newLauncher returns the portal picker when it is enabled and reachable.
// Otherwise every picker request fails and the picker is nil.
func newLauncher(cfg *config.Config, deliver func(importer.Result)) (importer.Launcher, *portal.Picker, func()) {
	unavailable := importer.LauncherFunc(func(importer.RequestToken) error {
		return errors.New("no file chooser available")
	})
	if !cfg.Portal.Enabled {
		return unavailable, nil, func() {}
	}

	logger := logging.Default().WithComponent("portal")
	conn, err := portal.Connect()
	if err != nil {
		logger.Warn("desktop portal unavailable", slog.Any("error", err))
		return unavailable, nil, func() {}
	}
	picker, err := portal.New(conn, deliver,
		portal.WithTitle(cfg.Portal.Title),
		portal.WithModal(cfg.Portal.Modal),
		portal.WithLogger(logger),
	)
	if err != nil {
		conn.Close()
		logger.Warn("desktop portal unavailable", slog.Any("error", err))
		return unavailable, nil, func() {}
	}
	return picker, picker, func() {
		picker.Close()
		conn.Close()
	}
}

func serveMetrics(cfg *config.Config, s *shell.Shell, logger *logging.Logger) func() {
	if s.Metrics() == nil || cfg.Metrics.Listen == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics().Handler())
	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", fmt.Sprintf("http://%s/metrics", cfg.Metrics.Listen)))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

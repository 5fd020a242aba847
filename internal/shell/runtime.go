package shell

import (
	"errors"
	"fmt"
	"log/slog"

	"oxygencrate/internal/config"
	"oxygencrate/internal/importer"
	"oxygencrate/internal/input"
	"oxygencrate/internal/logging"
	"oxygencrate/internal/metrics"
	"oxygencrate/internal/store"
	"oxygencrate/internal/uithread"
)

// Host bundles the platform collaborators a shell is assembled from.
// Poster, Launcher and Resolver are required.
type Host struct {
	Poster       uithread.Poster
	Launcher     importer.Launcher
	Resolver     importer.ContentResolver
	CharacterMap input.CharacterMap
	Permission   StoragePermission
	Keyboard     SoftKeyboard

	// Logger overrides the logger built from the configuration.
	Logger *logging.Logger
}

// FromConfig builds the logger, metrics, import ledger and both bridges
// described by cfg and returns a shell owning them. Close releases the
// ledger and the log file.
func FromConfig(cfg *config.Config, host Host) (*Shell, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	fail := func(err error) (*Shell, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	logger := host.Logger
	if logger == nil {
		lc, err := logging.FromSettings(cfg.LoggingSettings())
		if err != nil {
			return nil, fmt.Errorf("logging config: %w", err)
		}
		logger, err = logging.New(lc)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		closers = append(closers, logger.Close)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	var recorder importer.Recorder
	if cfg.Storage.Enabled {
		st, err := store.OpenWithTimeout(cfg.StoragePath(), cfg.BusyTimeout())
		if err != nil {
			return fail(fmt.Errorf("open import ledger: %w", err))
		}
		closers = append(closers, st.Close)
		recorder = st
	}

	km := host.CharacterMap
	if cfg.Input.Layout != "host" || km == nil {
		if cfg.Input.Layout == "host" {
			logger.Warn("host character map requested but not provided, using us layout")
		}
		km = input.USKeyboard
	}
	keys := input.NewBridge(km,
		input.WithMetrics(m),
		input.WithLogger(logger.WithComponent("input")),
	)

	if host.Poster == nil {
		return fail(errors.New("shell: UI thread poster is required"))
	}
	imports, err := importer.NewBridge(cfg.ImportDir(), host.Poster, host.Launcher, host.Resolver,
		importer.WithRecorder(recorder),
		importer.WithMetrics(m),
		importer.WithLogger(logger.WithComponent("importer")),
		importer.WithFallbackPrefix(cfg.Import.FallbackPrefix),
		importer.WithFirstToken(importer.RequestToken(cfg.Import.RequestCode)),
		importer.WithModes(cfg.DirMode(), cfg.FileMode()),
	)
	if err != nil {
		return fail(err)
	}

	if m != nil {
		if err := m.TrackQueue("characters", keys.Pending); err != nil {
			return fail(err)
		}
		if err := m.TrackQueue("paths", imports.Pending); err != nil {
			return fail(err)
		}
	}

	opts := []Option{
		WithStoragePermission(host.Permission),
		WithSoftKeyboard(host.Keyboard),
		WithMetrics(m),
		WithLogger(logger.WithComponent("shell")),
	}
	for _, c := range closers {
		opts = append(opts, WithCloser(c))
	}
	s, err := New(keys, imports, host.Poster, opts...)
	if err != nil {
		return fail(err)
	}
	s.settings = cfg.Clone()

	logger.Info("shell assembled",
		slog.String("import_dir", imports.Dir()),
		slog.Bool("ledger", recorder != nil),
		slog.Bool("metrics", m != nil),
	)
	return s, nil
}

// Reconfigure applies a reloaded configuration to a running shell. The
// log level changes at once. The names of other sections that differ
// from the running configuration are returned; they take effect on the
// next start.
func (s *Shell) Reconfigure(cfg *config.Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	s.logger.SetLevel(level)

	next := cfg.Clone()
	s.settingsMu.Lock()
	prev := s.settings
	s.settings = next
	s.settingsMu.Unlock()

	var restart []string
	if prev != nil {
		restart = staleSections(prev, next)
	}
	s.logger.Info("configuration reloaded",
		slog.String("log_level", logging.LevelString(level)),
		slog.Any("restart_required", restart),
	)
	return restart, nil
}

func staleSections(prev, next *config.Config) []string {
	var stale []string
	if prev.Import != next.Import {
		stale = append(stale, "import")
	}
	if prev.Input != next.Input {
		stale = append(stale, "input")
	}
	if prev.Storage != next.Storage {
		stale = append(stale, "storage")
	}
	pl, nl := prev.Logging, next.Logging
	pl.Level, nl.Level = "", ""
	if pl != nl {
		stale = append(stale, "logging")
	}
	if prev.Metrics != next.Metrics {
		stale = append(stale, "metrics")
	}
	if prev.Portal.Enabled != next.Portal.Enabled {
		stale = append(stale, "portal")
	}
	return stale
}

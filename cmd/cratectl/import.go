package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"oxygencrate/internal/config"
	"oxygencrate/internal/importer"
	"oxygencrate/internal/logging"
	"oxygencrate/internal/portal"
	"oxygencrate/internal/shell"
	"oxygencrate/internal/uithread"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Copy files into the import directory",
		Long: `Each file goes through the picker protocol: a request token is allocated,
the result is delivered on the UI thread and the copy is recorded in the
ledger. Imported paths are printed one per line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runImport(cmd, cfg, args)
		},
	}
}

func runImport(cmd *cobra.Command, cfg *config.Config, files []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The looper goroutine plays the UI thread; this goroutine is the
	// application loop and only polls.
	looper := uithread.NewLooper()
	defer looper.Close()
	go looper.Run(ctx)

	launched := map[importer.RequestToken]bool{}
	launcher := importer.LauncherFunc(func(tok importer.RequestToken) error {
		launched[tok] = true
		return nil
	})

	s, err := shell.FromConfig(cfg, shell.Host{
		Poster:   looper,
		Launcher: launcher,
		Resolver: importer.FileResolver{},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	failed := 0
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}

		tok := s.RequestFilePicker()
		var ok bool
		if err := looper.Call(ctx, func() { ok = launched[tok] }); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("request %d was not launched", tok)
		}
		s.DeliverResult(importer.Result{Token: tok, ContentRef: abs, Flags: importer.PersistableRead})
		if err := looper.Call(ctx, func() {}); err != nil {
			return err
		}

		path := s.PollSelectedFile()
		if path == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not imported\n", f)
			failed++
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files not imported", failed, len(files))
	}
	return nil
}

func newPickCmd(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Open the desktop file chooser and import the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runPick(ctx, cmd, cfg)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for a selection")
	return cmd
}

func runPick(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	conn, err := portal.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	wake := make(chan struct{}, 1)
	looper := uithread.NewLooper(uithread.WithWake(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}))
	defer looper.Close()

	var s *shell.Shell
	picker, err := portal.New(conn, func(res importer.Result) { s.DeliverResult(res) },
		portal.WithTitle(cfg.Portal.Title),
		portal.WithModal(cfg.Portal.Modal),
		portal.WithLogger(logging.Default().WithComponent("portal")),
	)
	if err != nil {
		return err
	}
	defer picker.Close()

	s, err = shell.FromConfig(cfg, shell.Host{
		Poster:   looper,
		Launcher: picker,
		Resolver: importer.FileResolver{},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	tok := s.RequestFilePicker()
	for {
		looper.Drain()
		if path := s.PollSelectedFile(); path != "" {
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}
		if s.Imports().State(tok) == importer.RequestResolved {
			return errors.New("no file imported")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for file chooser: %w", ctx.Err())
		case <-wake:
		}
	}
}

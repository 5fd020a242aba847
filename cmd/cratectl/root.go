package main

import (
	"github.com/spf13/cobra"

	"oxygencrate/internal/config"
)

type options struct {
	configPath string
	root       string
	quiet      bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "cratectl",
		Short: "Control utility for oxygencrate",
		Long: `cratectl imports files into the OxygenCrate directory, opens the desktop
file chooser and inspects the import ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default "+config.ConfigPath()+")")
	root.PersistentFlags().StringVar(&opts.root, "root", "", "override the storage root imports are copied under")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")

	root.AddCommand(
		newImportCmd(opts),
		newPickCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.Import.Root = o.root
	}
	if o.quiet {
		cfg.Logging.Level = "error"
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"prism-board/config"
)

var Version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "prism-board",
		Short:         "Prism task board: ordering, drag and drop, and sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindRootFlags(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(tuiCmd(opts))
	rootCmd.AddCommand(initStorageCmd(opts))
	rootCmd.AddCommand(tokenCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindRootFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", config.ResolvePath(), "config file (.toml, .yaml or .yml)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
}

// load reads the config and builds the process logger.
func (o *rootOptions) load() (config.Config, *log.Logger, error) {
	cfg, err := config.LoadOrCreate(o.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if o.debug {
		cfg.Debug = true
	}
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return cfg, logger, nil
}

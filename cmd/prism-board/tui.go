package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"prism-board/board"
	"prism-board/storage"
	"prism-board/tui"
)

func tuiCmd(root *rootOptions) *cobra.Command {
	var scope, logFile string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the board in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			// The terminal owns stdout, so logs go to a file or nowhere.
			logger.SetOutput(io.Discard)
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logger.SetOutput(f)
			}
			if scope == "" {
				scope = cfg.Board.Scope
			}

			gws, err := openGateway(cfg, logger)
			if err != nil {
				return err
			}
			defer gws.Close()

			ctx := cmd.Context()
			store := board.NewStore(gws.gateway, storeOptions(cfg, logger)...)
			if _, err := store.Load(ctx, scope); err != nil {
				return err
			}
			if gws.redis != nil && cfg.Redis.UpdatesChannel != "" {
				go storage.WatchUpdates(ctx, logger, gws.redis, cfg.Redis.UpdatesChannel, gws.cache.Origin(), func(updated string) {
					if updated == scope {
						_, _ = store.Reload(ctx)
					}
				})
			}
			return tui.Run(ctx, store, cfg.Keys, logger)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "board scope to open (overrides board.scope)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}

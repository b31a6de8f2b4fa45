package main

import (
	"errors"

	"github.com/spf13/cobra"

	"prism-board/config"
	"prism-board/storage"
)

func initStorageCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-storage",
		Short: "Create the tables, queues or database the configured backend needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			switch cfg.Storage.Backend {
			case config.BackendTables:
				return storage.Provision(cmd.Context(), cfg.Storage.ConnectionString,
					[]string{cfg.Storage.TasksTable}, []string{cfg.Storage.EventsQueue}, logger)
			case config.BackendSQLite:
				db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
				if err != nil {
					return err
				}
				logger.WithField("path", cfg.Storage.SQLitePath).Info("sqlite schema ready")
				return db.Close()
			}
			return errors.New("memory backend needs no storage")
		},
	}
}

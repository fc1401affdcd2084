package main

import (
	"github.com/spf13/cobra"

	"github.com/rushteam/tracksim/catalog/snapshot"
	"github.com/rushteam/tracksim/logging"
	"github.com/rushteam/tracksim/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage catalog snapshots",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push [dir]",
	Short: "Copy a file snapshot (vectors.json + metadata.json) into redis",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir := cfg.Catalog.Dir
		if len(args) == 1 {
			dir = args[0]
		}

		ctx := cmd.Context()
		snap, err := snapshot.NewFileStore(dir).Load(ctx)
		if err != nil {
			return err
		}
		rs, err := store.NewRedisStore(cfg.Redis)
		if err != nil {
			return err
		}
		defer rs.Close()

		if err := snapshot.NewKVStore(rs, cfg.Catalog.RedisPrefix).Save(ctx, snap); err != nil {
			return err
		}
		logging.Info().
			Str("dir", dir).
			Str("prefix", cfg.Catalog.RedisPrefix).
			Int("tracks", len(snap.Tracks)).
			Msg("snapshot pushed")
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotPushCmd)
	rootCmd.AddCommand(snapshotCmd)
}

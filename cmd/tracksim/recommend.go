package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/tracksim/service"
)

var (
	recTopK    int
	recQueries bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <track-id>... | --query \"artist, title\"...",
	Short: "Run one recommendation locally and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var seeds []service.Seed
		if recQueries {
			seeds, err = a.resolver.ResolveTerms(ctx, args)
		} else {
			ids := make([]int64, 0, len(args))
			for _, s := range args {
				id, perr := strconv.ParseInt(s, 10, 64)
				if perr != nil {
					return fmt.Errorf("invalid track id %q", s)
				}
				ids = append(ids, id)
			}
			seeds, err = a.resolver.ResolveIDs(ctx, ids)
		}
		if err != nil {
			return err
		}

		res, err := a.recommender.RecommendSeeds(ctx, seeds, recTopK)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	recommendCmd.Flags().IntVarP(&recTopK, "top-k", "k", 10, "number of tracks to return (1-50)")
	recommendCmd.Flags().BoolVarP(&recQueries, "query", "q", false, "treat arguments as \"artist, title\" queries")
	rootCmd.AddCommand(recommendCmd)
}

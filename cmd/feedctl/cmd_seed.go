package main

import (
	"fmt"

	"campusfeed/internal/database"
	"campusfeed/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions
	var fixturesOnly bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo campus: fixture users, posts and threads plus generated filler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := connectDB(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() { _ = database.Close(db) }()

			if fixturesOnly {
				opts.FillerUsers = 0
			}
			sum, err := seed.NewSeeder(db, opts).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded users=%d posts=%d comments=%d reactions=%d\n",
				sum.Users, sum.Posts, sum.Comments, sum.Reactions)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.FillerUsers, "users", opts.FillerUsers, "generated users on top of the fixtures")
	f.IntVar(&opts.PostsPerUser, "posts", opts.PostsPerUser, "posts per generated user")
	f.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "comments per generated post")
	f.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "parallel writers for generated content")
	f.Int64Var(&opts.Seed, "seed", 0, "random seed for generated content")
	f.BoolVar(&opts.FastHash, "fast-hash", false, "hash passwords at the minimum bcrypt cost")
	f.BoolVar(&fixturesOnly, "fixtures-only", false, "skip generated content")
	return cmd
}

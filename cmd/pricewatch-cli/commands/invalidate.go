package commands

import (
	"fmt"
	"log/slog"

	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/services/pricecache"

	"github.com/spf13/cobra"
)

var (
	invalidateRedisAddr *string
	invalidateRedisDb   *int
	invalidatePrefix    *string
)

func init() {
	invalidateRedisAddr = invalidateCmd.Flags().String("redis-addr", "localhost:6379", "Redis address.")
	invalidateRedisDb = invalidateCmd.Flags().Int("redis-db", 0, "Redis database number.")
	invalidatePrefix = invalidateCmd.Flags().String("prefix", "", "Cache key namespace override.")
	rootCmd.AddCommand(invalidateCmd)
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [major [middle]]",
	Short: "Drops cached price queries for a category scope, or everything when no scope is given.",
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cache, err := pricecache.NewInvalidator(ctx, pricecache.Options{
			Addr:   *invalidateRedisAddr,
			DB:     *invalidateRedisDb,
			Prefix: *invalidatePrefix,
		})
		if err != nil {
			serviceutil.Fatal("failed to connect to cache", err)
		}

		switch len(args) {
		case 0:
			err = cache.InvalidateAll(ctx)
		case 1:
			err = cache.InvalidateMajor(ctx, args[0])
		case 2:
			err = cache.InvalidateMiddle(ctx, args[0], args[1])
		}
		if err != nil {
			serviceutil.Fatal("invalidation failed", err)
		}

		slog.Info("cache invalidated", "scope", fmt.Sprintf("%v", args))
	},
}

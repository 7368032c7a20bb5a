package commands

import (
	"log/slog"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/serviceutil"
	"petstay-backend/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var watchSpec *string

func init() {
	watchSpec = watchCmd.Flags().String("cron", "0 6 * * *", "When to run, in Asia/Seoul time.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <schedule|review|shelter|items> [--cron <spec>]",
	Short: "Repeats a run on a cron schedule until interrupted.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := parseRunType(args[0])
		if err != nil {
			serviceutil.Fatal("invalid run type", err)
		}
		ctx := cmd.Context()
		c := newCollector()

		cron := chrono.NewStandardCron(telemetry.SlogAPI{})
		defer cron.Stop()
		next, err := cron.Cron(*watchSpec, func() {
			err := runOnce(ctx, c, t)
			if err != nil {
				slog.ErrorContext(ctx, "scheduled run failed", "type", t, "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid cron spec", err)
		}

		slog.InfoContext(ctx, "watching", "type", t, "cron", *watchSpec, "next", next)
		<-ctx.Done()
	},
}

func parseRunType(s string) (acquire.TargetType, error) {
	switch s {
	case "shelter":
		return acquire.TargetShelterListing, nil
	case "items":
		return acquire.TargetBookingItems, nil
	}
	return acquire.ParseTargetType(s)
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/coordinator"
	"petstay-backend/internal/acquire/normalize"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/catalog"
	"petstay-backend/internal/collector"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/serviceutil"
	"petstay-backend/internal/components/telemetry"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	outPath      *string
	maxInFlight  *int
	startDate    *string
	days         *int
	onlySaleDays *bool
	category     *string
	upkinds      *[]string
	shelterState *string
	saveItems    *bool
)

func init() {
	flags := runCmd.PersistentFlags()
	outPath = flags.String("out", "", "Write the full results as json to this file.")
	maxInFlight = flags.Int("max-in-flight", 0, "Override the number of targets fetched at once.")

	startDate = runScheduleCmd.Flags().String("start", "", "First date of the schedule (yyyy-mm-dd), defaults to today.")
	days = runScheduleCmd.Flags().Int("days", 30, "Number of days after the start date to fetch.")
	onlySaleDays = runScheduleCmd.Flags().Bool("only-sale-days", false, "Drop dates that cannot be booked from the output.")

	category = runReviewCmd.Flags().String("category", "", "Place category used in review urls, defaults to place.")

	upkinds = runShelterCmd.Flags().StringSlice("upkind", []string{"dog", "cat", "other"}, "Animal categories to list (dog, cat, other or a raw upkind code).")
	shelterState = runShelterCmd.Flags().String("state", "", "Only list animals in this state (notice, protect).")

	saveItems = runItemsCmd.Flags().Bool("save", false, "Add newly discovered booking items to the catalog.")

	runCmd.AddCommand(runScheduleCmd, runReviewCmd, runShelterCmd, runItemsCmd)
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <schedule|review|shelter|items>",
	Short: "Fetches one batch of targets and prints a summary.",
}

var runScheduleCmd = &cobra.Command{
	Use:   "schedule [--start <yyyy-mm-dd>] [--days <n>]",
	Short: "Fetches the daily price and availability of every catalog item.",
	Run: func(cmd *cobra.Command, args []string) {
		runJob(cmd.Context(), acquire.TargetSchedule)
	},
}

var runReviewCmd = &cobra.Command{
	Use:   "review [--category <category>]",
	Short: "Fetches the review tag votes of every catalog business.",
	Run: func(cmd *cobra.Command, args []string) {
		runJob(cmd.Context(), acquire.TargetReview)
	},
}

var runShelterCmd = &cobra.Command{
	Use:   "shelter [--upkind dog,cat] [--state notice]",
	Short: "Fetches the animals currently listed by public shelters.",
	Run: func(cmd *cobra.Command, args []string) {
		runJob(cmd.Context(), acquire.TargetShelterListing)
	},
}

var runItemsCmd = &cobra.Command{
	Use:   "items [--save]",
	Short: "Discovers the bookable items of every catalog business.",
	Run: func(cmd *cobra.Command, args []string) {
		runJob(cmd.Context(), acquire.TargetBookingItems)
	},
}

var upkindAliases = map[string]string{
	"dog":   sources.UpkindDog,
	"cat":   sources.UpkindCat,
	"other": sources.UpkindOther,
}

func buildTargets(t acquire.TargetType, now time.Time) ([]acquire.Target, error) {
	if t == acquire.TargetShelterListing {
		codes := make([]string, 0, len(*upkinds))
		for _, u := range *upkinds {
			u = strings.TrimSpace(u)
			if code, ok := upkindAliases[u]; ok {
				u = code
			}
			codes = append(codes, u)
		}
		return catalog.ShelterTargets(codes, *shelterState), nil
	}

	c, err := catalog.Load(*catalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	switch t {
	case acquire.TargetSchedule:
		start := now
		if *startDate != "" {
			start, err = time.ParseInLocation("2006-01-02", *startDate, now.Location())
			if err != nil {
				return nil, fmt.Errorf("parse --start: %w", err)
			}
		}
		return c.ScheduleTargets(start, start.AddDate(0, 0, *days)), nil
	case acquire.TargetReview:
		return c.ReviewTargets(*category), nil
	case acquire.TargetBookingItems:
		return c.BookingItemTargets(), nil
	}
	return nil, fmt.Errorf("unsupported target type %q", t)
}

func newCollector() *collector.Collector {
	cfg, err := collector.LoadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	c, err := collector.New(cfg, chrono.NewStandardImpl(), telemetry.SlogAPI{}, nil)
	if err != nil {
		serviceutil.Fatal("failed to initialize collector", err)
	}
	return c
}

func runJob(ctx context.Context, t acquire.TargetType) {
	c := newCollector()
	err := runOnce(ctx, c, t)
	if err != nil {
		serviceutil.Fatal("run failed", err)
	}
}

// runOnce performs a single run, a cancelled run still reports and writes
// whatever it gathered.
func runOnce(ctx context.Context, c *collector.Collector, t acquire.TargetType) error {
	targets, err := buildTargets(t, chrono.NewStandardImpl().Now())
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		slog.WarnContext(ctx, "nothing to fetch", "type", t)
		return nil
	}

	progress := &coordinator.Progress{OnProgress: func(s coordinator.Snapshot) {
		slog.InfoContext(ctx, "progress", "run", s)
	}}

	t1 := time.Now()
	results, runErr := c.Run(ctx, targets, collector.RunOptions{
		MaxInFlight: *maxInFlight,
		Progress:    progress,
	})
	slog.InfoContext(ctx, "run finished", "type", t, "seconds", time.Since(t1).Seconds(), "summary", acquire.Summarize(results))

	if t == acquire.TargetSchedule && *onlySaleDays {
		for i := range results {
			results[i].Records = normalize.OnlySaleDays(results[i].Records)
		}
	}
	if t == acquire.TargetBookingItems && *saveItems {
		err = saveDiscoveredItems(results)
		if err != nil {
			return err
		}
	}

	renderResults(os.Stdout, results)
	err = writeResults(*outPath, results)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return runErr
}

func saveDiscoveredItems(results []acquire.Result) error {
	c, err := catalog.Load(*catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	added := 0
	for _, r := range results {
		if r.Status != acquire.StatusSuccess {
			continue
		}
		base, ok := c.Business(strings.TrimPrefix(r.TargetID, "items/"))
		if !ok {
			continue
		}
		added += c.AddBookingItems(base, r.Records)
	}
	if added == 0 {
		return nil
	}
	slog.Info("catalog updated", "added", added, "path", *catalogPath)
	return c.Save(*catalogPath)
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

// NextRunCmd returns the next-run command.
func NextRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-run",
		Short: "Show the stored schedule and when the next report is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, repo, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			state, err := repo.GetSchedule(ctx)
			if err != nil {
				return err
			}
			sched := state.Config.Normalized()
			loc := cfg.Location()

			if !sched.Enabled || len(sched.Recipients) == 0 {
				fmt.Printf("Schedule: %s\n", color.New(color.FgYellow).Sprint("disabled"))
			} else {
				fmt.Printf("Schedule: %s, day %d at %s (%s)\n", color.New(color.FgGreen).Sprint("enabled"), sched.DayOfMonth, sched.TimeOfDay(), loc)
				fmt.Printf("Recipients: %v\n", sched.Recipients)
				next := domain.NextRun(sched, time.Now().In(loc))
				fmt.Printf("Next run: %s\n", next.Format(time.RFC1123))
			}
			if state.LastSentPeriod != "" {
				fmt.Printf("Last sent: %s\n", state.LastSentPeriod)
			} else {
				fmt.Println("Last sent: (never)")
			}
			return nil
		},
	}
}

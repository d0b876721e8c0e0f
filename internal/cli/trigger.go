package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

// TriggerCmd returns the trigger command.
func TriggerCmd() *cobra.Command {
	var month string
	var to []string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run one report attempt now",
		Long: `Run one report attempt with the same rules as the scheduler: the report for
the previous month is sent only if it is due and has not been sent yet.

With --month the report for that month is sent unconditionally as a test send,
to --to recipients when given, otherwise to the configured recipients. A test
send never marks the month as sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if month != "" {
				period, err := domain.ParsePeriod(month)
				if err != nil {
					return err
				}
				outcome, err := s.arbiter.SendNow(ctx, period, app.NormalizeRecipients(to))
				if outcome != nil {
					for _, addr := range outcome.Delivered {
						fmt.Printf("  %s %s\n", color.New(color.FgGreen).Sprint("sent"), addr)
					}
					for addr, reason := range outcome.Failed {
						fmt.Printf("  %s %s: %s\n", color.New(color.FgRed).Sprint("failed"), addr, reason)
					}
				}
				if err != nil {
					return fmt.Errorf("test send for %s failed: %w", period.Label(), err)
				}
				return nil
			}

			result, err := s.arbiter.Attempt(ctx, app.SourceCLI, time.Now())
			fmt.Printf("%s %s\n", outcomeLabel(result.Outcome), result.Message())
			if result.NextRunAt != nil {
				fmt.Printf("Next run: %s\n", result.NextRunAt.Format(time.RFC1123))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "send the report for this month (YYYY-MM) as a test send")
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipients for a test send")
	return cmd
}

func outcomeLabel(outcome app.Outcome) string {
	switch outcome {
	case app.OutcomeSent:
		return color.New(color.FgGreen).Sprint("SENT")
	case app.OutcomeFailed:
		return color.New(color.FgRed).Sprint("FAILED")
	default:
		return color.New(color.FgYellow).Sprint("SKIPPED")
	}
}

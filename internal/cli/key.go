package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/rabbitmq"
)

// KeyCmd returns the key command with its subcommands.
func KeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the webhook access key",
	}
	cmd.AddCommand(keyShowCmd())
	cmd.AddCommand(keyRotateCmd())
	return cmd
}

func withAccessKeys(ctx context.Context, fn func(keys *app.AccessKeys, baseURL string) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	pool, repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := rabbitmq.NewPublisher(cfg.RabbitMQURL, logger)
	defer events.Close()

	return fn(app.NewAccessKeys(repo, events, logger), cfg.PublicBaseURL)
}

func printKey(key *domain.AccessKey, baseURL string) {
	fmt.Printf("Key:     %s\n", color.New(color.FgCyan).Sprint(key.Value))
	fmt.Printf("Created: %s\n", key.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Webhook: %s/webhooks/gst-report?trigger=1&key=%s\n", baseURL, key.Value)
}

func keyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active key, creating one if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccessKeys(context.Background(), func(keys *app.AccessKeys, baseURL string) error {
				key, err := keys.CurrentKey(context.Background())
				if err != nil {
					return err
				}
				printKey(key, baseURL)
				return nil
			})
		},
	}
}

func keyRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Deactivate the active key and issue a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccessKeys(context.Background(), func(keys *app.AccessKeys, baseURL string) error {
				key, err := keys.Rotate(context.Background())
				if err != nil {
					return err
				}
				fmt.Println(color.New(color.FgGreen).Sprint("Key rotated. The previous key no longer works."))
				printKey(key, baseURL)
				return nil
			})
		},
	}
}

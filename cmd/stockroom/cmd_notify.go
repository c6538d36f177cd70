package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockroom/internal/config"
	"stockroom/internal/notify"
	"stockroom/internal/store"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test [consumable-id]",
	Short: "Run the low-stock alert for one consumable",
	Long: `Runs the low-stock notifier against a consumable as if its count had
just crossed the minimum. The daily dedup gate applies, so this sends
at most one email per item per day like the real thing.`,
	Args: cobra.ExactArgs(1),
	RunE: runNotifyTest,
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.GetConsumable(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !c.LowStock() {
		fmt.Printf("%s is not low (%d on hand, minimum %d); nothing to send\n", c.Name, c.Count, c.Minimum)
		return nil
	}

	notifier := notify.New(st, buildMailer(cfg), logger, cfg.Email.Sender)
	result, err := notifier.Alert(cmd.Context(), c)
	if err != nil {
		return err
	}

	switch {
	case result.Deduped:
		fmt.Printf("already notified for %s today; skipped\n", c.Name)
	case len(result.Recipients) == 0:
		fmt.Println("no admin accounts with email addresses; nothing sent")
	default:
		fmt.Printf("alert for %s: outcome=%s recipients=%d\n", c.Name, result.Outcome, len(result.Recipients))
	}
	return nil
}

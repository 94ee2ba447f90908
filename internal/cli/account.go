package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"wavebridge/internal/rotor"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Verify the credential and show account info",
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := rotor.New(cfg.Remote, log.New(io.Discard))
	account, err := client.AccountAbout(ctx)
	if err != nil {
		return formatted(err)
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(account)
	}

	name := account.PublicName
	if name == "" {
		name = account.Login
	}
	fmt.Printf("Account: %s (%s)\n", titleStyle.Render(name), account.Login)
	fmt.Printf("  uid:          %d\n", account.UID)
	fmt.Printf("  subscription: %s\n", yesNoIcon(account.HasPlus || account.HasMusicSubscription))
	fmt.Printf("  service:      %s\n", yesNoIcon(account.ServiceAvailable))
	return nil
}

func yesNoIcon(ok bool) string {
	if ok {
		return "✓"
	}
	return errorStyle.Render("✗")
}

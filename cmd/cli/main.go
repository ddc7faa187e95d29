package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		token   string
		timeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "yieldledger-cli",
		Short:         "YieldLedger CLI tool",
		Long:          `A command line interface for operating the YieldLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("YIELDLEDGER_URL", "http://localhost:8080"), "Base URL of the YieldLedger API")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("YIELDLEDGER_TOKEN"), "Bearer token (env YIELDLEDGER_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	client := func() *apiClient {
		return newAPIClient(baseURL, token, timeout)
	}

	rootCmd.AddCommand(
		plansCmd(client),
		accountsCmd(client),
		txCmd(client),
		adjustCmd(client),
		accrualCmd(client),
		reconcileCmd(client),
		ledgerCmd(client),
		auditCmd(client),
		tokenCmd(),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

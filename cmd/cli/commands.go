package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/infrastructure/auth"
)

const apiPrefix = "/api/v1"

func plansCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "plans", Short: "Investment plan catalog"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List investment plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := client().do(cmd.Context(), http.MethodGet, apiPrefix+"/plans", nil)
			if err != nil {
				return err
			}

			var resp struct {
				Plans []dto.PlanResponse `json:"plans"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMIN\tMAX\tDAILY RATE")
			for _, p := range resp.Plans {
				maximum := "-"
				if p.MaxPrincipal != nil {
					maximum = *p.MaxPrincipal
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.MinPrincipal, maximum, p.DailyRate)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func accountsCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "accounts", Short: "Account operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := client().do(cmd.Context(), http.MethodGet, apiPrefix+"/accounts/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	})

	return cmd
}

func txCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "tx", Short: "Transaction operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move a transaction to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := client().do(cmd.Context(), http.MethodPost,
				apiPrefix+"/transactions/"+url.PathEscape(args[0])+"/transition",
				dto.TransitionRequest{Status: args[1]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	})

	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List transactions awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := client().do(cmd.Context(), http.MethodGet, fmt.Sprintf("%s/transactions/pending?limit=%d", apiPrefix, limit), nil)
			if err != nil {
				return err
			}

			var resp dto.ListTransactionsResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tACCOUNT\tTYPE\tAMOUNT\tCREATED")
			for _, t := range resp.Transactions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, truncate(t.AccountID, 20), t.Type, t.Amount, t.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	cmd.AddCommand(pending)

	return cmd
}

func adjustCmd(client func() *apiClient) *cobra.Command {
	var reason, key string

	cmd := &cobra.Command{
		Use:   "adjust <account> <delta>",
		Short: "Credit (positive delta) or debit (negative delta) an account",
		Example: `  yieldledger-cli adjust user-1 25 --reason "goodwill credit"
  yieldledger-cli adjust --reason "chargeback" -- user-1 -40.50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = ulid.Make().String()
			}
			raw, err := client().do(cmd.Context(), http.MethodPost,
				apiPrefix+"/admin/accounts/"+url.PathEscape(args[0])+"/adjustments",
				dto.AdjustmentRequest{Delta: args[1], Reason: reason},
				"Idempotency-Key", key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the balance is being corrected (required)")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Key for safe retries (default: random)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func accrualCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "accrual", Short: "Interest accrual"}

	var date string
	run := &cobra.Command{
		Use:   "run",
		Short: "Accrue interest for every invested account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.AccrualRequest
			if date != "" {
				d, err := domain.ParseDate(date)
				if err != nil {
					return err
				}
				req.Date = &d
			}

			raw, err := client().do(cmd.Context(), http.MethodPost, apiPrefix+"/admin/accrual/run", req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	run.Flags().StringVar(&date, "date", "", "Accrual date, YYYY-MM-DD (default: today UTC)")
	cmd.AddCommand(run)

	return cmd
}

func reconcileCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [account]",
		Short: "Compare stored account totals with the transaction log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := apiPrefix + "/admin/reconciliation"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			raw, err := client().do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func auditCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Audit trail of privileged operations"}

	var (
		actor, action, resource string
		limit                   int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			if actor != "" {
				q.Set("actor_id", actor)
			}
			if action != "" {
				q.Set("action", action)
			}
			if resource != "" {
				q.Set("resource_id", resource)
			}

			raw, err := client().do(cmd.Context(), http.MethodGet, apiPrefix+"/admin/audit-logs?"+q.Encode(), nil)
			if err != nil {
				return err
			}

			var resp dto.ListAuditLogsResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tRESOURCE\tREASON")
			for _, l := range resp.AuditLogs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\n",
					l.CreatedAt.Format(time.RFC3339), l.ActorID, l.Action, l.ResourceType, l.ResourceID, truncate(l.Reason, 40))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&actor, "actor", "", "Only entries by this actor")
	list.Flags().StringVar(&action, "action", "", "Only this action, e.g. account.adjust")
	list.Flags().StringVar(&resource, "resource", "", "Only entries about this account or transaction id")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	cmd.AddCommand(list)

	return cmd
}

func ledgerCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "Ledger operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check that money is conserved across the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			raw, err := client().do(cmd.Context(), http.MethodGet, apiPrefix+"/admin/ledger/consistency", nil)

			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				fmt.Fprintln(out, "Consistency check FAILED")
				if printErr := printJSON(out, raw); printErr != nil {
					return printErr
				}
				return errors.New("ledger is inconsistent")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Consistency check PASSED")
			return printJSON(out, raw)
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Development tokens"}

	var (
		subject string
		admin   bool
		secret  string
		ttl     time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token signed with the shared secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.Actor{ID: subject, IsAdmin: admin})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "sub", "", "Account/user ID carried in the token (required)")
	issue.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	issue.Flags().StringVar(&secret, "secret", "", "Signing secret (default: JWT_SECRET)")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = issue.MarkFlagRequired("sub")
	cmd.AddCommand(issue)

	return cmd
}

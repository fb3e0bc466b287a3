package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
)

func balancesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balances [coin]",
		Short: "Show coin balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var balances []dto.BalanceResponse
			if len(args) == 1 {
				var one dto.BalanceResponse
				if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/balances/"+url.PathEscape(args[0]), nil, &one); err != nil {
					return err
				}
				balances = append(balances, one)
			} else if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/balances", nil, &balances); err != nil {
				return err
			}

			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), balances)
				return nil
			}
			rows := make([][]string, 0, len(balances))
			for _, b := range balances {
				rows = append(rows, []string{b.Coin, b.Symbol, b.Balance.String()})
			}
			renderTable(cmd.OutOrStdout(), []string{"Coin", "Symbol", "Balance"}, rows)
			return nil
		},
	}
}

func transactionsCmd(opts *options) *cobra.Command {
	txCmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Transaction operations",
	}

	var (
		coin          string
		limit, offset int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if coin != "" {
				q.Set("coin", coin)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			var page dto.TransactionListResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/transactions?"+q.Encode(), nil, &page); err != nil {
				return err
			}
			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), page)
				return nil
			}
			printTransactions(cmd, page.Transactions)
			return nil
		},
	}
	listCmd.Flags().StringVar(&coin, "coin", "", "Only show this coin")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tx dto.TransactionResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/transactions/"+url.PathEscape(args[0]), nil, &tx); err != nil {
				return err
			}
			return printTransaction(cmd, opts, &tx)
		},
	}

	var create dto.CreateTransactionRequest
	var createAmount string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Record a send or receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(createAmount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", createAmount, err)
			}
			create.Amount = amount

			var tx dto.TransactionResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/transactions", create, &tx); err != nil {
				return err
			}
			return printTransaction(cmd, opts, &tx)
		},
	}
	createCmd.Flags().StringVar(&create.Coin, "coin", "", "Coin key (bitcoin, ethereum, tether)")
	createCmd.Flags().StringVar(&createAmount, "amount", "", "Amount, must be positive")
	createCmd.Flags().StringVar(&create.Type, "type", "send", "send or receive")
	createCmd.Flags().StringVar(&create.ToAddress, "to", "", "Recipient address (required for send)")
	createCmd.MarkFlagRequired("coin")
	createCmd.MarkFlagRequired("amount")

	var upd struct{ coin, amount, typ, to string }
	updateCmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildUpdateRequest(cmd, upd.coin, upd.amount, upd.typ, upd.to)
			if err != nil {
				return err
			}
			var tx dto.TransactionResponse
			if err := opts.client().do(cmd.Context(), http.MethodPatch, "/api/v1/transactions/"+url.PathEscape(args[0]), req, &tx); err != nil {
				return err
			}
			return printTransaction(cmd, opts, &tx)
		},
	}
	updateCmd.Flags().StringVar(&upd.coin, "coin", "", "New coin key")
	updateCmd.Flags().StringVar(&upd.amount, "amount", "", "New amount")
	updateCmd.Flags().StringVar(&upd.typ, "type", "", "New type")
	updateCmd.Flags().StringVar(&upd.to, "to", "", "New recipient address")

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a transaction and reverse its effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/transactions/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	txCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return txCmd
}

// buildUpdateRequest only sets fields whose flags were passed.
func buildUpdateRequest(cmd *cobra.Command, coin, amount, typ, to string) (*dto.UpdateTransactionRequest, error) {
	req := &dto.UpdateTransactionRequest{}
	flags := cmd.Flags()
	if flags.Changed("coin") {
		req.Coin = &coin
	}
	if flags.Changed("amount") {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		req.Amount = &d
	}
	if flags.Changed("type") {
		req.Type = &typ
	}
	if flags.Changed("to") {
		req.ToAddress = &to
	}
	return req, nil
}

func sendCmd(opts *options) *cobra.Command {
	var req dto.TransferRequest
	var amount string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send coins to an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			req.Amount = d

			var resp dto.TransferResponse
			err = opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/transfers", req, &resp)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), resp)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s %s to %s\nTx: %s\n", req.Amount, req.Coin, req.ToAddress, resp.TxID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Coin, "coin", "", "Coin key")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to send")
	cmd.Flags().StringVar(&req.ToAddress, "to", "", "Recipient address")
	cmd.MarkFlagRequired("coin")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("to")
	return cmd
}

func pricesCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "prices [coin]",
		Short: "Show market prices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var markets []*dto.MarketResponse
			switch {
			case len(args) == 1:
				var one dto.MarketResponse
				if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/prices/"+url.PathEscape(args[0]), nil, &one); err != nil {
					return err
				}
				markets = append(markets, &one)
			default:
				method, path := http.MethodGet, "/api/v1/prices"
				if refresh {
					method, path = http.MethodPost, "/api/v1/prices/refresh"
				}
				var all dto.PricesResponse
				if err := opts.client().do(cmd.Context(), method, path, nil, &all); err != nil {
					return err
				}
				if all.Loading {
					fmt.Fprintln(cmd.ErrOrStderr(), "prices are loading")
				}
				markets = all.Prices
			}

			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), markets)
				return nil
			}
			rows := make([][]string, 0, len(markets))
			for _, m := range markets {
				rows = append(rows, []string{
					m.ID,
					m.Symbol,
					m.CurrentPrice.StringFixed(2),
					m.PriceChange7d.StringFixed(2) + "%",
					m.SparklineChangePct.StringFixed(2) + "%",
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"Coin", "Symbol", "Price (USD)", "7d", "Sparkline"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch fresh prices first")
	return cmd
}

func portfolioCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show balances valued in USD",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p dto.PortfolioResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/portfolio", nil, &p); err != nil {
				return err
			}
			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), p)
				return nil
			}
			rows := make([][]string, 0, len(p.Holdings)+1)
			for _, h := range p.Holdings {
				price, value := "n/a", "n/a"
				if h.Price != nil {
					price = h.Price.StringFixed(2)
				}
				if h.USDValue != nil {
					value = h.USDValue.StringFixed(2)
				}
				rows = append(rows, []string{h.Symbol, h.Balance.String(), price, value})
			}
			total := p.TotalUSD.StringFixed(2)
			if !p.Complete {
				total += " (partial)"
			}
			rows = append(rows, []string{"TOTAL", "", "", total})
			renderTable(cmd.OutOrStdout(), []string{"Symbol", "Balance", "Price", "Value (USD)"}, rows)
			return nil
		},
	}
}

func sparklineCmd(opts *options) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "sparkline [coin]",
		Short: "Download a 7 day sparkline image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/prices/%s/sparkline.%s", url.PathEscape(args[0]), format)
			data, _, err := opts.client().raw(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + "." + format
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "svg", "svg or png")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <coin>.<format>)")
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistency := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, &result); err != nil {
				return fmt.Errorf("consistency check FAILED: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consistency check PASSED\nStatus: %v\n", result["status"])
			return nil
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Show the reconciliation report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ReconciliationReportResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/ledger/reconciliation", nil, &report); err != nil {
				return err
			}
			if opts.jsonOut {
				printJSON(cmd.OutOrStdout(), report)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Coins reconciled: %d/%d  Transactions: %d\n",
				report.ReconciledCoins, report.TotalCoins, report.TotalTransactions)
			if len(report.Discrepancies) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(report.Discrepancies))
			for _, d := range report.Discrepancies {
				rows = append(rows, []string{d.Coin, d.RecordedBalance.String(), d.CalculatedBalance.String(), d.Difference.String()})
			}
			renderTable(cmd.OutOrStdout(), []string{"Coin", "Recorded", "Calculated", "Difference"}, rows)
			return nil
		},
	}

	ledger.AddCommand(consistency, reconcile)
	return ledger
}

func authCmd(opts *options) *cobra.Command {
	authRoot := &cobra.Command{
		Use:   "auth",
		Short: "Account operations",
	}

	var signup dto.SignUpRequest
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and print its verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.SignUpResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/auth/signup", signup, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nVerification code: %s\n", resp.Message, resp.Code)
			return nil
		},
	}
	signupCmd.Flags().StringVar(&signup.Email, "email", "", "Email address")
	signupCmd.Flags().StringVar(&signup.Password, "password", "", "Password")
	signupCmd.Flags().StringVar(&signup.Name, "name", "", "Display name")

	var verify dto.VerifyEmailRequest
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an email and print a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AuthResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/auth/verify", verify, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&verify.Email, "email", "", "Email address")
	verifyCmd.Flags().StringVar(&verify.Code, "code", "", "Six digit code")

	var signin dto.SignInRequest
	signinCmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AuthResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/auth/signin", signin, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	signinCmd.Flags().StringVar(&signin.Email, "email", "", "Email address")
	signinCmd.Flags().StringVar(&signin.Password, "password", "", "Password")

	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var user dto.UserResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/auth/me", nil, &user); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), user)
			return nil
		},
	}

	var resend dto.ResendCodeRequest
	resendCmd := &cobra.Command{
		Use:   "resend",
		Short: "Issue a new verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.SignUpResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/auth/resend", resend, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Verification code: %s\n", resp.Code)
			return nil
		},
	}
	resendCmd.Flags().StringVar(&resend.Email, "email", "", "Email address")

	var codeEmail string
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Show the pending verification code for an email",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]string
			path := "/api/v1/auth/verification-code?email=" + url.QueryEscape(codeEmail)
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp["code"])
			return nil
		},
	}
	codeCmd.Flags().StringVar(&codeEmail, "email", "", "Email address")

	authRoot.AddCommand(signupCmd, verifyCmd, signinCmd, resendCmd, codeCmd, meCmd)
	return authRoot
}

func printTransactions(cmd *cobra.Command, txs []*dto.TransactionResponse) {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.ID,
			tx.Date.Format("2006-01-02 15:04"),
			tx.Type,
			tx.Amount.String() + " " + tx.Symbol,
			truncate(tx.ToAddress, 20),
		})
	}
	renderTable(cmd.OutOrStdout(), []string{"ID", "Date", "Type", "Amount", "To"}, rows)
}

func printTransaction(cmd *cobra.Command, opts *options, tx *dto.TransactionResponse) error {
	if opts.jsonOut {
		printJSON(cmd.OutOrStdout(), tx)
		return nil
	}
	printTransactions(cmd, []*dto.TransactionResponse{tx})
	return nil
}

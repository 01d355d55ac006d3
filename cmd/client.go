package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/backend"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/poller"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/redirect"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/types"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"
)

var errConfirmationFailed = errors.New("payment confirmation failed")

var (
	confirmReturnURL string
	confirmToken     string

	loginCallbackURL string

	checkoutPackage string
	checkoutOrigin  string
	checkoutToken   string
)

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm a checkout payment from its return URL",
	Long: "Reads session_id from the checkout return URL, polls the checkout status " +
		"until the payment is confirmed or fails, and prints the outcome.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := mustLoadConfig()
		return runConfirm(cmd.Context(), cfg, cmd.OutOrStdout(), confirmReturnURL, tokenOrEnv(confirmToken))
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange an OAuth callback URL for an application token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := mustLoadConfig()
		return runLogin(cmd.Context(), cfg, cmd.OutOrStdout(), loginCallbackURL)
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Create a hosted checkout session and print its URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := mustLoadConfig()
		return runCheckout(cmd.Context(), cfg, cmd.OutOrStdout(), checkoutPackage, checkoutOrigin, tokenOrEnv(checkoutToken))
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(checkoutCmd)

	confirmCmd.Flags().StringVar(&confirmReturnURL, "return-url", "", "Checkout return URL carrying ?session_id=")
	confirmCmd.Flags().StringVar(&confirmToken, "token", "", "Bearer token (defaults to AUTH_TOKEN)")
	_ = confirmCmd.MarkFlagRequired("return-url")

	loginCmd.Flags().StringVar(&loginCallbackURL, "callback-url", "", "OAuth callback URL carrying #session_id=")
	_ = loginCmd.MarkFlagRequired("callback-url")

	checkoutCmd.Flags().StringVar(&checkoutPackage, "package", service.PackageMonthly, "Package: monthly or yearly")
	checkoutCmd.Flags().StringVar(&checkoutOrigin, "origin", "", "Absolute origin URL the checkout returns to")
	checkoutCmd.Flags().StringVar(&checkoutToken, "token", "", "Bearer token (defaults to AUTH_TOKEN)")
	_ = checkoutCmd.MarkFlagRequired("origin")
}

func tokenOrEnv(token string) string {
	if token = strings.TrimSpace(token); token != "" {
		return token
	}
	return strings.TrimSpace(os.Getenv("AUTH_TOKEN"))
}

func runConfirm(ctx context.Context, cfg *config.Config, out io.Writer, returnURL, token string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := url.Parse(strings.TrimSpace(returnURL))
	if err != nil {
		return fmt.Errorf("parse return url: %w", err)
	}
	sessionID, err := redirect.SessionIDFromQuery(u)
	if err != nil {
		return err
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	p := poller.New(pollerConfig(cfg), statusSource(cfg, client), session.NewRefresher(client))
	sess := session.New(token)

	outcome := p.Run(ctx, poller.Request{
		SessionID: sessionID,
		Token:     sess.Token(),
		OnUser:    sess.Replace,
		OnAttempt: func(attempt int) {
			fmt.Fprintf(os.Stderr, "checking payment status (%d/%d)\n", attempt, cfg.Poller.MaxAttempts)
		},
	})

	result := map[string]interface{}{
		"session_id": outcome.SessionID,
		"state":      outcome.State,
		"attempts":   outcome.Attempts,
		"return_url": u.String(),
	}
	if outcome.Succeeded() {
		result["return_url"] = redirect.StripSessionID(u).String()
	}
	if outcome.Reason != "" {
		result["reason"] = outcome.Reason
	}
	if outcome.Err != nil {
		result["error"] = outcome.Err.Error()
	}
	if outcome.RefreshErr != nil {
		result["refresh_error"] = outcome.RefreshErr.Error()
	}
	if user := sess.User(); user != nil {
		result["user"] = mapper.UserToDTO(user)
	}
	if err := writeJSON(out, result); err != nil {
		return err
	}

	if !outcome.Succeeded() {
		return fmt.Errorf("%w: %s", errConfirmationFailed, outcome.Reason)
	}
	return nil
}

func runLogin(ctx context.Context, cfg *config.Config, out io.Writer, callbackURL string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil {
		return fmt.Errorf("parse callback url: %w", err)
	}
	sessionID, err := redirect.SessionIDFromFragment(u)
	if err != nil {
		return err
	}

	billing := service.NewBillingService(backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout), cfg.Confirmations)
	resp, err := billing.ExchangeOAuthSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return writeJSON(out, mapper.TokenToDTO(resp))
}

func runCheckout(ctx context.Context, cfg *config.Config, out io.Writer, packageID, origin, token string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if token == "" {
		return service.ErrUnauthorized
	}
	req := &types.CreateCheckoutRequest{
		PackageId: strings.ToLower(strings.TrimSpace(packageID)),
		OriginUrl: strings.TrimSpace(origin),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	billing := service.NewBillingService(backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout), cfg.Confirmations)
	resp, err := billing.CreateCheckout(ctx, token, req)
	if err != nil {
		return err
	}
	return writeJSON(out, mapper.CheckoutToDTO(resp))
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/signal-setup/internal/captcha"
	"github.com/Iron-Ham/signal-setup/internal/config"
)

var captchaTokenCmd = &cobra.Command{
	Use:   "captcha-token",
	Short: "Obtain a registration captcha token",
	Long: `Opens the captcha page in the browser and waits for the signalcaptcha://
link, falling back to asking for it to be pasted. The token is printed on
stdout.

With --quiet nothing but the token is written to stdout, so the command can
serve as another tool's captcha helper.`,
	Args: cobra.NoArgs,
	RunE: runCaptchaToken,
}

var captchaCallbackCmd = &cobra.Command{
	Use:    "captcha-callback <url>",
	Short:  "Receive a signalcaptcha:// link from the OS URL handler",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runCaptchaCallback,
}

var captchaQuiet bool

func init() {
	rootCmd.AddCommand(captchaTokenCmd)
	rootCmd.AddCommand(captchaCallbackCmd)

	captchaTokenCmd.Flags().BoolVarP(&captchaQuiet, "quiet", "q", false, "print only the token")
}

func runCaptchaToken(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{quiet: captchaQuiet, noHelper: true})
	if err != nil {
		return err
	}
	defer a.Close()

	tok, err := a.controller.Captcha(cmd.Context())
	if err != nil {
		return err
	}
	if !captchaQuiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "Captcha token:")
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func runCaptchaCallback(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return captcha.WriteCallback(cfg.Captcha.ResolveCallbackFile(), args[0])
}

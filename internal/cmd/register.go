package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Request a verification code for --account",
	Long: `Registers --account with the Signal service, retrying transient
failures. Without --token the captcha flow runs first.

--landline requests an SMS, waits, then requests a voice call, for numbers
that cannot receive text messages.`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <code>",
	Short: "Verify --account with the code it received",
	Long: `Submits the verification code. Without --pin a registration lock PIN is
generated, shown and set once it has been saved; with --pin the account's
existing PIN is used and no new one is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var (
	registerToken    string
	registerVoice    bool
	registerLandline bool
	verifyPin        string
)

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(verifyCmd)

	registerCmd.Flags().StringVar(&registerToken, "token", "", "captcha token (signalcaptcha://...)")
	registerCmd.Flags().BoolVar(&registerVoice, "voice", false, "deliver the code by voice call")
	registerCmd.Flags().BoolVar(&registerLandline, "landline", false, "request an SMS, then a voice call")
	registerCmd.MarkFlagsMutuallyExclusive("voice", "landline")

	verifyCmd.Flags().StringVar(&verifyPin, "pin", "", "existing registration lock PIN")
}

func runRegister(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}

	var tok account.CaptchaToken
	if registerToken != "" {
		if tok, err = account.ParseCaptchaToken(registerToken); err != nil {
			return err
		}
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.Register(cmd.Context(), acct, tok, modeFromFlags(registerVoice, registerLandline))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nNext: signal-setup verify --account %s <code>\n", acct)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}
	code, err := account.ParseVerificationCode(args[0])
	if err != nil {
		return err
	}

	var pin account.Pin
	if verifyPin != "" {
		if pin, err = account.ParsePin(verifyPin); err != nil {
			return err
		}
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.Verify(cmd.Context(), acct, code, pin)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nNext: signal-setup link-desktop-live --account %s\n", acct)
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the interactive onboarding wizard",
	Long: `Walks through the whole setup: phone number, captcha, registration,
verification code, registration lock PIN and linking the desktop app.

This is what runs when signal-setup is started without a subcommand.`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}

func runWizard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.Run(cmd.Context())
	return err
}

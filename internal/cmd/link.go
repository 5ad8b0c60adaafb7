package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/signal-setup/internal/errors"
)

var linkLiveCmd = &cobra.Command{
	Use:   "link-desktop-live",
	Short: "Link the desktop app by scanning the screen for its QR code",
	Long: `Starts the Signal desktop app if needed, then captures every display at
a fixed interval until a device-link QR code is found and accepted. The
post-link sync runs once the device is linked.

On macOS the terminal needs the Screen Recording permission.`,
	Args: cobra.NoArgs,
	RunE: runLinkLive,
}

var linkImageCmd = &cobra.Command{
	Use:   "link-desktop-image <path>",
	Short: "Link the desktop app from a screenshot of its QR code",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkImage,
}

var linkURICmd = &cobra.Command{
	Use:   "link-desktop-uri <uri>",
	Short: "Link the desktop app from a copied sgnl://linkdevice URI",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkURI,
}

var listDevicesCmd = &cobra.Command{
	Use:   "list-devices",
	Short: "List the devices linked to --account",
	Args:  cobra.NoArgs,
	RunE:  runListDevices,
}

var (
	linkInterval intervalValue
	linkAttempts int
)

func init() {
	rootCmd.AddCommand(linkLiveCmd)
	rootCmd.AddCommand(linkImageCmd)
	rootCmd.AddCommand(linkURICmd)
	rootCmd.AddCommand(listDevicesCmd)

	linkLiveCmd.Flags().Var(&linkInterval, "interval", "time between screen scans in seconds, or a duration like 1500ms (default from config, 2)")
	linkLiveCmd.Flags().IntVar(&linkAttempts, "attempts", 0, "number of scans before giving up (default from config, 90)")
}

func runLinkLive(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}
	if linkAttempts < 0 {
		return errors.NewValidationError("must not be negative").WithField("attempts").WithValue(linkAttempts)
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	interval := linkInterval.d
	if interval == 0 {
		interval = a.cfg.Link.Interval()
	}
	attempts := linkAttempts
	if attempts == 0 {
		attempts = a.cfg.Link.Attempts
	}

	_, err = a.controller.LinkLive(cmd.Context(), acct, interval, attempts)
	return err
}

func runLinkImage(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.LinkFromImage(cmd.Context(), acct, args[0])
	return err
}

func runLinkURI(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.LinkFromURI(cmd.Context(), acct, args[0])
	return err
}

func runListDevices(cmd *cobra.Command, args []string) error {
	acct, err := requireAccount()
	if err != nil {
		return err
	}

	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.controller.ListDevices(cmd.Context(), acct)
	return err
}

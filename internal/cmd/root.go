package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Iron-Ham/signal-setup/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "signal-setup",
	Short: "Register a Signal account with signal-cli and link the desktop app",
	Long: `signal-setup registers a phone number with a containerized signal-cli,
verifies it, protects it with a registration lock PIN and links the Signal
desktop application by finding its QR code on screen.

Run without a subcommand to start the interactive wizard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWizard,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// operation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/signal-setup/config.yaml)")
	rootCmd.PersistentFlags().VarP(&accountFlag, "account", "a", "account phone number in international format, e.g. +33612345678")
	rootCmd.PersistentFlags().String("data-dir", "", "host directory holding the signal-cli account state")
	rootCmd.PersistentFlags().String("image", "", "signal-cli container image")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("backend.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("backend.image", rootCmd.PersistentFlags().Lookup("image"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/signal-setup")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIGNAL_SETUP")
	// e.g. SIGNAL_SETUP_BACKEND_DATA_DIR for backend.data_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Package cmd implements the vaultd command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tbonner/vaultd/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "vaultd",
	Short: "Vault-based task coordination engine",
	Long: `Vaultd coordinates autonomous task processing through a shared vault
directory. Items move between stage folders as they progress, producers
deposit work into Inbox, and the orchestration loop claims, dispatches,
and routes items while sensitive actions wait for human approval.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/vaultd/config.yaml)")
	rootCmd.PersistentFlags().String("vault", "", "vault root directory (overrides vault.root)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("vault.root", rootCmd.PersistentFlags().Lookup("vault"))
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
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VAULTD")
	// Replace dots with underscores for nested keys in env vars
	// e.g., VAULTD_VAULT_ROOT for vault.root
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

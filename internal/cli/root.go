// Package cli implements the tagship command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "tagship",
	Short: "Tag-triggered release pipeline engine",
	Long: `tagship runs release pipelines triggered by tag pushes: it checks the
repository out at the pushed tag, exchanges a workload identity token for a
registry publish token and publishes the package with that token in the
process environment.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tagship/config.yaml)")
	rootCmd.PersistentFlags().Int("workers", 5, "processor worker count")
	_ = viper.BindPFlag("processor.workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initConfig() {
	viper.SetDefault("processor.workers", 5)
	viper.SetDefault("queue.vendor", "memory")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.config/tagship")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("TAGSHIP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config:", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute(buildVersion string) {
	if buildVersion != "" {
		version = buildVersion
	}
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

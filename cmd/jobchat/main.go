// Package main provides the jobchat command: the interview API server and
// its operational subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonathan/jobchat/internal/config"
)

var (
	cfgFile string
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "jobchat",
	Short: "AI job interview backend",
	Long: `jobchat runs structured job interviews with an AI interviewer: it compiles a
system instruction from organization, job and candidate data, relays interview
turns, writes the final evaluation report, and extracts job and organization
data from free text.`,
	SilenceUsage: true,
}

func init() {
	var err error
	v, err = config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is jobchat.yaml in the current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("store", "", "document store: postgres or memory")

	bindFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	bindFlag("log.json", rootCmd.PersistentFlags().Lookup("json"))
	bindFlag("store", rootCmd.PersistentFlags().Lookup("store"))
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

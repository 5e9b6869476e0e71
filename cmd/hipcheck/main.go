// Command hipcheck drives one run of the plugin execution fabric: load a
// KDL policy file, connect to the plugins it names, dispatch the analysis
// tree, and print a pass/investigate verdict. Plugin process management and
// target resolution are external collaborators (spec.md §6) — this binary
// only speaks the fabric's protocol to whatever is already listening.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Optional in this environment; plugin addresses and timeouts can
		// equally come from host.yaml or the shell environment.
		fmt.Fprintf(os.Stderr, "hipcheck: no .env file loaded: %v\n", err)
	}

	root := rootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hipcheck: %v\n", err)
		os.Exit(exitError)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hipcheck",
		Short: "Plugin execution fabric driver for supply-chain risk assessment",
	}
	cmd.PersistentFlags().String("config", "./deploy/config", "host configuration directory")
	_ = viper.BindPFlag("config_dir", cmd.PersistentFlags().Lookup("config"))
	viper.SetEnvPrefix("HIPCHECK")
	viper.AutomaticEnv()

	cmd.AddCommand(checkCmd())
	cmd.AddCommand(validatePolicyCmd())
	return cmd
}

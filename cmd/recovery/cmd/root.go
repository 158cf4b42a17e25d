package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pis-cofins-recovery-service/pkg/logger"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recovery",
	Short: "PIS/COFINS credit recovery by ICMS-ST exclusion",
	Long: `Recovery recomputes the PIS and COFINS bases of SPED Contribuições
ledgers with the ICMS-ST share removed, writes corrected ledgers and
reports the credit recovered per period.

Examples:
  recovery process --ledgers jan_2024.txt,feb_2024.txt --reference base_st.xlsx
  recovery process --ledgers sped_03_2024.txt --reference base.csv --cfops 5405,5403 --output-dir out
  recovery inspect --ledger jan_2024.txt
  recovery version`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in the .env file, config file and ENV variables.
func initConfig() {
	// A missing .env is normal; the process environment is used as is.
	envErr := godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}
	}

	// Read environment variables that match, e.g. RECOVERY_OUTPUT_DIR
	viper.SetEnvPrefix("RECOVERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	log, err := newCLILogger(viper.GetBool("verbose"), viper.GetString("log-format"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(4)
	}
	logger.SetGlobalLogger(log)

	if viper.ConfigFileUsed() != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("Using config file")
	}
	if envErr == nil {
		log.Debug(".env file loaded")
	} else if !os.IsNotExist(envErr) {
		log.WithError(envErr).Warn("Could not load .env file, relying on process environment")
	}
}

// newCLILogger builds the stderr logger used by every command. Without
// --verbose only warnings and errors reach the terminal.
func newCLILogger(verbose bool, format string) (logger.Logger, error) {
	config := logger.DefaultConfig()
	config.Level = logger.WarnLevel
	if verbose {
		config = logger.DebugConfig()
	}
	config.Format = logger.Format(strings.ToLower(format))

	return logger.NewLogger(config)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

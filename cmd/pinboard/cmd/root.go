package cmd

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/pinboard"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "pinboard",
	Short: "Versioned pin store CLI",
	Long:  "CLI for publishing, fetching and managing pins on folder or OCI registry boards.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			level = logrus.InfoLevel
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/pinboard/config.yaml)")
	rootCmd.PersistentFlags().String("board", "", "board target (folder:///path or oci://host/repo:tag)")
	rootCmd.PersistentFlags().String("cache-dir", "", "cache directory (default: ~/.cache/pinboard)")
	rootCmd.PersistentFlags().String("subdir", "", "sub-namespace at the remote")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("board", rootCmd.PersistentFlags().Lookup("board"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("subdir", rootCmd.PersistentFlags().Lookup("subdir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PINBOARD")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pinboard")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "pinboard")
	}
	return ".pinboard"
}

func openBoard() (*pinboard.Board, error) {
	var opts []pinboard.Option
	if dir := viper.GetString("cache_dir"); dir != "" {
		opts = append(opts, pinboard.WithCacheDir(dir))
	}
	if subdir := viper.GetString("subdir"); subdir != "" {
		opts = append(opts, pinboard.WithSubdir(subdir))
	}
	return pinboard.Open(viper.GetString("board"), opts...)
}

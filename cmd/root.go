package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pipeshell/pipeshell/core/config"
)

var (
	cfgPath string
	debug   bool
)

func loadConfig() (*config.Configuration, error) {
	cfg, err := config.Load(afero.NewOsFs(), cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		// No config directory is fine, fall back to the compiled-in
		// defaults.
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Printf("couldn't load config: %v", err)
		return nil, err
	}

	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipeshell",
	Short: "Process pipeline composition and job control",
	Long: `pipeshell composes external commands and in-process filters into
pipelines, tracking every spawned process as a job.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log diagnostic notifications")
}

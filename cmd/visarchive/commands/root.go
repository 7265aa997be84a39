package commands

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/viant/visual-archive/internal/config"
	"github.com/viant/visual-archive/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded by PersistentPreRunE.
	globalConfig *config.Config
	logger       *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "visarchive",
	Short: "Content-based image retrieval over a local art archive",
	Long: `visarchive - find visually similar works in an image archive.

Images are embedded into unit vectors, tagged with a style, and stored as
an exact inner-product index next to a JSON metadata file.

Configuration comes from an optional YAML file (--config), a .env file in
the working directory, and VISARCHIVE_* environment variables.

Examples:
  # Index every .png/.jpg in ./images
  visarchive build

  # Find the closest sketches to a photo
  visarchive search photo.jpg --tag Sketch

  # Serve the HTTP API
  visarchive serve --addr :8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	globalConfig, logger = cfg, l
	return nil
}

package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gear6io/lattice/server/catalog"
	"github.com/gear6io/lattice/server/config"
	"github.com/gear6io/lattice/server/metastore"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Manage cube metadata: cubes, facts, dimensions and partitions",
	Long: `Lattice manages the metadata of an analytical cube layer: cubes with
their measures and dimensions, the fact and dimension tables feeding them,
the storages those tables live on and the partitions registered per storage.

The CLI opens the catalog configured in lattice-server.yml directly, so it
works against the same store a running server uses.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

var (
	configFile string
	verbose    bool
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "lattice-server.yml", "path to the server configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// cliLogger builds the logger CLI commands run with. Quiet by default so
// command output stays readable; --verbose turns operation logging on.
func cliLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig reads the configured file. A missing file is only an error when
// the caller asked for it explicitly; the default path falls back to the
// default configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err == nil {
		return cfg, nil
	}
	if !cmd.Flags().Changed("config") {
		if _, statErr := os.Stat(configFile); os.IsNotExist(statErr) {
			return config.LoadDefaultConfig(), nil
		}
	}
	return nil, err
}

// openMetastore wires a metastore over the configured catalog store. The
// caller owns the returned metastore and must Close it.
func openMetastore(cmd *cobra.Command) (*metastore.Metastore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := cliLogger()
	store, err := catalog.NewStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	return metastore.New(cfg, store, logger), nil
}

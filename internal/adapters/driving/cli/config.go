package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// ConfigInitFunc writes a default config file and returns its path.
// An empty path means the default location.
type ConfigInitFunc func(path string, force bool) (string, error)

var configInit ConfigInitFunc

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Writes a configuration file with default values to --config, or to
~/.sercha-ingest/config.toml. The vault secret is never written; supply it
with SERCHA_INGEST_SECRET.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoServices: "true"},
	RunE:        runConfigInit,
}

// SetConfigInit registers the function used by 'config init'.
func SetConfigInit(fn ConfigInitFunc) {
	configInit = fn
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if configInit == nil {
		return errors.New("config writer not configured")
	}
	path, err := configInit(configPath, configInitForce)
	if err != nil {
		return err
	}
	cmd.Printf("Config written to %s\n", path)
	return nil
}

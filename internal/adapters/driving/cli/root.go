package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services holds the driving ports the commands use.
type Services struct {
	DataSources driving.DataSourceService
	Sync        driving.SyncOrchestrator
	Scheduler   driving.Scheduler

	// Owner is the caller identity for every command.
	Owner string

	// MetricsAddr is where the daemon serves /metrics. Empty disables it.
	MetricsAddr string
}

// BootstrapFunc builds services from the config file path given by --config.
// The returned cleanup is called after the command finishes.
type BootstrapFunc func(configPath string) (*Services, func(), error)

var (
	dataSourceService driving.DataSourceService
	syncOrchestrator  driving.SyncOrchestrator
	scheduler         driving.Scheduler
	owner             string
	metricsAddr       string

	bootstrap BootstrapFunc
	cleanup   func()

	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sercha-ingest",
	Short: "Sync wiki, issue-tracker and code-host content for indexing",
	Long: `sercha-ingest registers data sources (Confluence, Jira, GitHub), stores
their credentials encrypted, and pulls their content as normalised documents
for the ingestion pipeline.

Run 'sercha-ingest daemon' to keep every source synchronised in the background.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.sercha-ingest/config.toml)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices installs the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		dataSourceService, syncOrchestrator, scheduler = nil, nil, nil
		owner, metricsAddr = "", ""
		return
	}
	dataSourceService = s.DataSources
	syncOrchestrator = s.Sync
	scheduler = s.Scheduler
	owner = s.Owner
	metricsAddr = s.MetricsAddr
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command and releases whatever bootstrap opened.
func Execute() error {
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	return rootCmd.Execute()
}

// setup enables logging and builds services for commands that need them.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	if dataSourceService != nil || bootstrap == nil {
		return nil
	}
	svc, done, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	SetServices(svc)
	cleanup = done
	return nil
}

// annotationNoServices marks commands that run without services.
const annotationNoServices = "no-services"

func requireOwner() (string, error) {
	if owner == "" {
		return "", errors.New("owner not configured")
	}
	return owner, nil
}

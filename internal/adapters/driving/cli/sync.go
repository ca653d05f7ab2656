package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Synchronise documents from sources",
	Long: `Triggers document synchronisation from configured sources.
If a source name or ID is provided, only that source is synchronised.
Otherwise, all active sources are synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil || dataSourceService == nil {
		return errors.New("sync service not configured")
	}
	callerID, err := requireOwner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		view, err := findSource(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Synchronising source: %s...\n", view.Name)

		result, err := syncOrchestrator.Sync(ctx, view.ID, callerID)
		if result != nil {
			printResult(cmd, view.Name, result)
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	}

	cmd.Println("Synchronising all sources...")
	results, err := syncOrchestrator.SyncAll(ctx, callerID)
	names := sourceNames(ctx, callerID)
	for i := range results {
		name := names[results[i].DataSourceID]
		if name == "" {
			name = results[i].DataSourceID
		}
		printResult(cmd, name, &results[i])
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if len(results) == 0 {
		cmd.Println("No active sources to synchronise.")
	}
	return nil
}

func printResult(cmd *cobra.Command, name string, r *domain.SyncResult) {
	status := renderStatus(&domain.DataSourceView{IsActive: true, SyncStatus: r.Status})
	cmd.Printf("  %s: %s (%s, %s) %s\n", name, status, r.Mode, r.Duration.Round(time.Millisecond), r.Message)
}

// sourceNames maps IDs to names for display. Failures just mean IDs are shown.
func sourceNames(ctx context.Context, callerID string) map[string]string {
	names := make(map[string]string)
	sources, err := dataSourceService.List(ctx, callerID)
	if err != nil {
		return names
	}
	for i := range sources {
		names[sources[i].ID] = sources[i].Name
	}
	return names
}

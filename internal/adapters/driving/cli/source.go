package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage data sources",
	Long: `Register, inspect, update and remove data sources.

Each source binds one connector (wiki, issue-tracker or code-host) to a set of
encrypted credentials and optional configuration.`,
}

var sourceAddCmd = &cobra.Command{
	Use:   "add [source-type]",
	Short: "Register a new data source",
	Long: `Register a new data source.

Credentials may be given with --cred key=value. Any required credential that
is missing is prompted for; secret values are read without echo.

Examples:
  sercha-ingest source add wiki --name eng-wiki \
    --cred wiki_url=https://example.atlassian.net \
    --cred wiki_username=me@example.com

  sercha-ingest source add code-host --name platform \
    --cred github_org=acme --cred github_token=ghp_xxx -c paths=README.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data sources",
	RunE:  runSourceList,
}

var sourceShowCmd = &cobra.Command{
	Use:   "show [source]",
	Short: "Show one data source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceShow,
}

var sourceUpdateCmd = &cobra.Command{
	Use:   "update [source]",
	Short: "Update a data source",
	Long: `Update a data source's display name, activity flag, credentials or config.

Credentials given with --cred are merged into the stored ones. Config given
with -c replaces the stored config.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceUpdate,
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove [source]",
	Short: "Remove a data source and its ingested documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceRemove,
}

var sourceTestCmd = &cobra.Command{
	Use:   "test [source]",
	Short: "Check a data source's credentials against its provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceTest,
}

// Flags for source add and update.
var (
	sourceName        string
	sourceDisplayName string
	sourceCreds       []string
	sourceConfig      []string
	sourceActive      bool
	sourceInactive    bool
)

var (
	statusStyles = map[domain.SyncStatus]lipgloss.Style{
		domain.SyncStatusIdle:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		domain.SyncStatusSyncing:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		domain.SyncStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		domain.SyncStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true)
)

func init() {
	sourceAddCmd.Flags().StringVar(&sourceName, "name", "", "Unique source name (lowercase, digits, - and _)")
	sourceAddCmd.Flags().StringVar(&sourceDisplayName, "display-name", "", "Human-readable name")
	sourceAddCmd.Flags().StringArrayVar(&sourceCreds, "cred", nil, "Credential key=value (repeatable)")
	sourceAddCmd.Flags().StringArrayVarP(&sourceConfig, "config", "c", nil, "Config key=value (repeatable)")

	sourceUpdateCmd.Flags().StringVar(&sourceDisplayName, "display-name", "", "New display name")
	sourceUpdateCmd.Flags().StringArrayVar(&sourceCreds, "cred", nil, "Credential key=value to merge (repeatable)")
	sourceUpdateCmd.Flags().StringArrayVarP(&sourceConfig, "config", "c", nil, "Config key=value (replaces all)")
	sourceUpdateCmd.Flags().BoolVar(&sourceActive, "enable", false, "Mark the source active")
	sourceUpdateCmd.Flags().BoolVar(&sourceInactive, "disable", false, "Mark the source inactive")
	sourceUpdateCmd.MarkFlagsMutuallyExclusive("enable", "disable")

	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceShowCmd)
	sourceCmd.AddCommand(sourceUpdateCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceTestCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	if dataSourceService == nil {
		return errors.New("data source service not configured")
	}
	callerID, err := requireOwner()
	if err != nil {
		return err
	}

	ctx := context.Background()
	reader := bufio.NewReader(cmd.InOrStdin())

	sourceType, err := selectSourceType(cmd, reader, args)
	if err != nil {
		return err
	}
	ct, err := connectorType(sourceType)
	if err != nil {
		return err
	}

	name := sourceName
	if name == "" {
		name = prompt(cmd, reader, "Source name: ")
	}

	creds, err := parsePairs(sourceCreds)
	if err != nil {
		return fmt.Errorf("--cred: %w", err)
	}
	cfg, err := parsePairs(sourceConfig)
	if err != nil {
		return fmt.Errorf("--config: %w", err)
	}
	for _, key := range ct.CredentialKeys {
		if creds[key.Key] != "" || !key.Required {
			continue
		}
		label := key.Label
		if label == "" {
			label = key.Key
		}
		if key.Secret {
			creds[key.Key] = promptSecret(cmd, reader, label+": ")
		} else {
			creds[key.Key] = prompt(cmd, reader, label+": ")
		}
	}

	view, err := dataSourceService.Register(ctx, driving.RegisterRequest{
		Owner:       callerID,
		Name:        name,
		DisplayName: sourceDisplayName,
		SourceType:  sourceType,
		Credentials: domain.CredentialMap(creds),
		Config:      cfg,
	})
	if err != nil {
		return fmt.Errorf("failed to add source: %w", err)
	}

	cmd.Printf("Source added: %s (%s)\n", view.Name, view.ID)
	cmd.Printf("Run 'sercha-ingest sync %s' to fetch its documents.\n", view.Name)
	return nil
}

func selectSourceType(cmd *cobra.Command, reader *bufio.Reader, args []string) (domain.SourceType, error) {
	if len(args) > 0 {
		return domain.ParseSourceType(args[0])
	}

	types := dataSourceService.ConnectorTypes()
	cmd.Println("Available source types:")
	for i, ct := range types {
		cmd.Printf("  %d. %s - %s\n", i+1, ct.SourceType, ct.Name)
	}
	input := prompt(cmd, reader, "\nSelect source type number: ")
	var idx int
	if _, err := fmt.Sscanf(input, "%d", &idx); err != nil || idx < 1 || idx > len(types) {
		return "", fmt.Errorf("invalid selection: %s", input)
	}
	return types[idx-1].SourceType, nil
}

func connectorType(t domain.SourceType) (domain.ConnectorType, error) {
	for _, ct := range dataSourceService.ConnectorTypes() {
		if ct.SourceType == t {
			return ct, nil
		}
	}
	return domain.ConnectorType{}, fmt.Errorf("%w: %s", domain.ErrUnknownSourceType, t)
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if dataSourceService == nil {
		return errors.New("data source service not configured")
	}
	callerID, err := requireOwner()
	if err != nil {
		return err
	}

	sources, err := dataSourceService.List(context.Background(), callerID)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		cmd.Println("Use 'sercha-ingest source add' to register one.")
		return nil
	}

	cmd.Println("Configured sources:")
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tTYPE\tSTATUS\tDOCUMENTS\tLAST SYNC")
	for i := range sources {
		s := &sources[i]
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\n",
			s.Name, s.SourceType, renderStatus(s), s.DocumentCount, formatWhen(s.LastSync))
	}
	return w.Flush()
}

func runSourceShow(cmd *cobra.Command, args []string) error {
	if dataSourceService == nil {
		return errors.New("data source service not configured")
	}
	view, err := findSource(context.Background(), args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Source: %s\n", view.Name)
	cmd.Printf("  ID:           %s\n", view.ID)
	cmd.Printf("  Display name: %s\n", view.DisplayName)
	cmd.Printf("  Type:         %s\n", view.SourceType)
	cmd.Printf("  Status:       %s\n", renderStatus(view))
	if view.SyncMessage != "" {
		cmd.Printf("  Message:      %s\n", view.SyncMessage)
	}
	cmd.Printf("  Documents:    %d\n", view.DocumentCount)
	cmd.Printf("  Last sync:    %s\n", formatWhen(view.LastSync))
	if view.SyncStartedAt != nil {
		cmd.Printf("  Started at:   %s\n", formatWhen(view.SyncStartedAt))
	}
	cmd.Printf("  Created:      %s\n", view.CreatedAt.Local().Format(time.DateTime))
	if len(view.Config) > 0 {
		cmd.Println("  Config:")
		keys := make([]string, 0, len(view.Config))
		for k := range view.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s = %s\n", k, view.Config[k])
		}
	}
	return nil
}

func runSourceUpdate(cmd *cobra.Command, args []string) error {
	if dataSourceService == nil {
		return errors.New("data source service not configured")
	}
	ctx := context.Background()
	view, err := findSource(ctx, args[0])
	if err != nil {
		return err
	}

	var req driving.UpdateRequest
	if cmd.Flags().Changed("display-name") {
		req.DisplayName = &sourceDisplayName
	}
	if sourceActive || sourceInactive {
		active := sourceActive
		req.IsActive = &active
	}
	if len(sourceCreds) > 0 {
		creds, err := parsePairs(sourceCreds)
		if err != nil {
			return fmt.Errorf("--cred: %w", err)
		}
		req.Credentials = domain.CredentialMap(creds)
	}
	if cmd.Flags().Changed("config") {
		cfg, err := parsePairs(sourceConfig)
		if err != nil {
			return fmt.Errorf("--config: %w", err)
		}
		req.Config = cfg
	}

	updated, err := dataSourceService.Update(ctx, view.ID, owner, req)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	cmd.Printf("Source updated: %s\n", updated.Name)
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	if dataSourceService == nil {
		return errors.New("data source service not configured")
	}
	ctx := context.Background()
	view, err := findSource(ctx, args[0])
	if err != nil {
		return err
	}

	if err := dataSourceService.Remove(ctx, view.ID, owner); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	cmd.Printf("Source removed: %s\n", view.Name)
	return nil
}

func runSourceTest(cmd *cobra.Command, args []string) error {
	if dataSourceService == nil || syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}
	ctx := context.Background()
	view, err := findSource(ctx, args[0])
	if err != nil {
		return err
	}

	ok, err := syncOrchestrator.TestConnection(ctx, view.ID, owner)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	if !ok {
		cmd.Printf("Source %s is not fully configured.\n", view.Name)
		return nil
	}
	cmd.Printf("Source %s: connection OK\n", view.Name)
	return nil
}

// findSource resolves a source by ID or by name among the owner's sources.
func findSource(ctx context.Context, ref string) (*domain.DataSourceView, error) {
	callerID, err := requireOwner()
	if err != nil {
		return nil, err
	}
	sources, err := dataSourceService.List(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	for i := range sources {
		if sources[i].ID == ref || sources[i].Name == ref {
			return &sources[i], nil
		}
	}
	return nil, fmt.Errorf("source %q: %w", ref, domain.ErrNotFound)
}

func renderStatus(v *domain.DataSourceView) string {
	if !v.IsActive {
		return inactiveStyle.Render("inactive")
	}
	style, ok := statusStyles[v.SyncStatus]
	if !ok {
		return string(v.SyncStatus)
	}
	return style.Render(string(v.SyncStatus))
}

func formatWhen(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

// parsePairs parses key=value arguments. Values may contain '='.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func prompt(cmd *cobra.Command, reader *bufio.Reader, label string) string {
	cmd.Print(label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(cmd *cobra.Command, reader *bufio.Reader, label string) string {
	cmd.Print(label)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return prompt(cmd, reader, "")
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	configapp "github.com/doeshing/vrelay/internal/application/config"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/infrastructure/cli/helpers"
	configloader "github.com/doeshing/vrelay/internal/infrastructure/config"
)

const (
	msgNoCachedFixes     = "No cached fixes."
	msgNoHistoryRecorded = "No history recorded yet."
	msgConfigurationOK   = "Configuration valid"
)

func newCacheCommand(st *state) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the fix cache",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memoized repairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixCache, err := st.container.OpenCache()
			if err != nil {
				return err
			}
			entries := fixCache.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoCachedFixes)
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n  => %s\n", firstLine(entry.Original), firstLine(entry.Fixed))
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every memoized repair",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixCache, err := st.container.OpenCache()
			if errors.Is(err, domain.ErrCacheCorrupt) {
				// An unreadable cache is replaced rather than repaired.
				if rmErr := os.Remove(st.container.CachePath()); rmErr != nil {
					return fmt.Errorf("remove corrupt cache: %w", rmErr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed corrupt fix cache.")
				return nil
			}
			if err != nil {
				return err
			}
			if err := fixCache.Clear(); err != nil {
				return fmt.Errorf("failed to clear fix cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Fix cache cleared.")
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the fix cache location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), st.container.CachePath())
			return nil
		},
	}

	cacheCmd.AddCommand(listCmd, clearCmd, pathCmd)
	return cacheCmd
}

func newHistoryCommand(st *state) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect execution history",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(cmd.OutOrStdout(), st, limit, "")
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max entries to show")

	var (
		query       string
		searchLimit int
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search history for a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--query required")
			}
			return listHistory(cmd.OutOrStdout(), st, searchLimit, query)
		},
	}
	searchCmd.Flags().StringVar(&query, "query", "", "Search keyword")
	searchCmd.Flags().IntVar(&searchLimit, "limit", domain.DefaultHistorySearchLimit, "Limit search results")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show success rate and top commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := st.container.HistoryStore.Records(domain.MaxHistoryAnalysisRecords, "")
			if err != nil {
				return fmt.Errorf("failed to retrieve history for analysis: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoHistoryRecorded)
				return nil
			}
			NewRenderer(cmd.OutOrStdout(), true).HistoryStats(records)
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.container.HistoryStore.ExportJSON(args[0]); err != nil {
				return fmt.Errorf("failed to export history to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "History exported to %s\n", args[0])
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.container.HistoryStore.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, statsCmd, exportCmd, clearCmd)
	return historyCmd
}

func listHistory(out io.Writer, st *state, limit int, query string) error {
	records, err := st.container.HistoryStore.Records(limit, query)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, msgNoHistoryRecorded)
		return nil
	}
	NewRenderer(out, true).History(records)
	return nil
}

func newDoctorCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Diagnose environment setup",
		Annotations: map[string]string{annotationTolerant: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer := NewRenderer(cmd.OutOrStdout(), true)
			if st.container == nil {
				renderer.HealthReport(domain.HealthReport{Checks: []domain.HealthCheck{{
					Name:    "Config file",
					Status:  domain.HealthError,
					Details: fmt.Sprintf("load failed: %v", st.buildErr),
				}}})
				return st.buildErr
			}

			report, err := st.container.DoctorService.Run(cmd.Context())
			renderer.HealthReport(report)
			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			if report.Failed() {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func newConfigCommand(st *state) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect vrelay configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := configloader.Marshal(st.container.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	var key string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get a specific configuration value",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			value, err := helpers.LookupConfigValue(st.container.Config, key)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), value)
			return nil
		},
	}
	getCmd.Flags().StringVar(&key, "key", "", "Key path (e.g., preferences.default_model)")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), st.container.ConfigLoader.Path())
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{annotationTolerant: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConfig(cmd.Context(), st); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgConfigurationOK)
			return nil
		},
	}

	configCmd.AddCommand(showCmd, getCmd, pathCmd, validateCmd)
	return configCmd
}

func validateConfig(ctx context.Context, st *state) error {
	if st.container == nil {
		return st.buildErr
	}
	cfg, err := st.container.ConfigProvider.Load(ctx)
	if err != nil {
		return err
	}
	if err := configapp.Validate(cfg); err != nil {
		return fmt.Errorf("%s: %w", st.container.ConfigLoader.Path(), err)
	}
	return nil
}

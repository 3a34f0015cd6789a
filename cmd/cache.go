/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/graphtran/internal"
	"github.com/valpere/graphtran/internal/store"
)

var historyLimit int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the chunk cache",
	Long: `List, inspect, invalidate and clear the SQLite chunk cache.

When given --db, convert stores every cleaned chunk output keyed by backend, model, prompt,
reference document and chunk text, so re-running an unchanged graph does not
call the backend again. The database is taken from --db, GRAPHTRAN_DB or the
db key of graphtran.yaml.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all chunk cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListCache(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No entries in the chunk cache.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBACKEND\tMODEL\tHITS\tLAST USED\tINVALID\tCHUNK")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%v\t%s\n",
				e.ID[:12], e.Backend, e.Model,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"),
				e.Invalidated, snippet(e.ChunkText))
		}
		return w.Flush()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Total entries:   %d\n", stats.TotalEntries)
		fmt.Fprintf(cmd.OutOrStdout(), "Active entries:  %d\n", stats.ActiveEntries)
		fmt.Fprintf(cmd.OutOrStdout(), "Invalid entries: %d\n", stats.InvalidEntries)
		fmt.Fprintf(cmd.OutOrStdout(), "Total hits:      %d\n", stats.TotalHits)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Mark a chunk cache entry as stale so it is translated again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveCacheID(db, args[0])
		if err != nil {
			return err
		}
		if err := db.InvalidateCache(context.Background(), id); err != nil {
			return fmt.Errorf("failed to invalidate entry: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated entry: %s\n", id)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chunk cache entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveCacheID(db, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteCache(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry: %s\n", id)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all entries from the chunk cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearCache(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries from the chunk cache.\n", n)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent convert runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := openConfiguredStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tBACKEND\tCHUNKS\tSTATUS\tVERIFY\tINPUT\tOUTPUT\tERROR")
		for _, r := range runs {
			verification := r.Verification
			if verification == internal.VerificationSkipped {
				verification = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.Backend, r.Chunks,
				r.Status, verification, r.InputPath, r.OutputPath, snippet(r.Error))
		}
		return w.Flush()
	},
}

// resolveCacheID expands a unique ID prefix, as printed by cache list.
func resolveCacheID(db *store.Store, prefix string) (string, error) {
	entries, err := db.ListCache(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to list entries: %w", err)
	}
	var match string
	for _, e := range entries {
		if strings.HasPrefix(e.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous cache ID prefix: %s", prefix)
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("cache entry not found: %s", prefix)
	}
	return match, nil
}

func snippet(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)

	cacheCmd.PersistentFlags().String("db", "", "Database path (default from GRAPHTRAN_DB or graphtran.yaml)")
	historyCmd.Flags().String("db", "", "Database path (default from GRAPHTRAN_DB or graphtran.yaml)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 = all)")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

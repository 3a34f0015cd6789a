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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesPath string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the operator rule table",
	Long: `List and look up the PyTorch to TTNN operator rules used by convert
and verify.

Rules ensure that a given PyTorch operator is always rewritten to the same
TTNN operator. Operators without a rule must pass through unchanged.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		table, err := loadRules(rulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\n", table.SourceVocabulary(), table.TargetVocabulary())
		for _, r := range table.Pairs() {
			fmt.Fprintf(w, "%s\t%s\n", r.Source, r.Target)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d rules (version %d)\n", table.Len(), table.Version())
		return nil
	},
}

var rulesLookupCmd = &cobra.Command{
	Use:   "lookup <operator>",
	Short: "Show the target of one source operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		table, err := loadRules(rulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}

		target, ok := table.Lookup(args[0])
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no rule, passes through unchanged\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], target)
		return nil
	},
}

var rulesReferenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Print the rule table as appended to the reference document",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		table, err := loadRules(rulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), table.Reference())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Operator rule table (YAML); the built-in table is used if empty")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesLookupCmd)
	rulesCmd.AddCommand(rulesReferenceCmd)
}

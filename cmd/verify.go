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

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <original_graph_path> <translated_graph_path>",
	Short: "Check a translated graph against the operator rule table",
	Long: `Check a translated graph against the operator rule table.

Every distinct operator called in the original graph is checked:
  - operators with a rule must be gone and their TTNN target present
  - operators without a rule must still be present unchanged

All violations are reported; the command exits non-zero if any was found.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		table, err := loadRules(cfg.Rules)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}

		original, err := readDocument("original graph", args[0])
		if err != nil {
			return err
		}
		translated, err := readDocument("translated graph", args[1])
		if err != nil {
			return err
		}

		return verifyDocuments(cmd.OutOrStdout(), table, original, translated)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("rules", "", "Operator rule table (YAML); the built-in table is used if empty")
}

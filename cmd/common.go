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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/graphtran/internal"
	"github.com/valpere/graphtran/internal/config"
	"github.com/valpere/graphtran/internal/extractor"
	"github.com/valpere/graphtran/internal/rules"
	"github.com/valpere/graphtran/internal/store"
	"github.com/valpere/graphtran/internal/translator"
	"github.com/valpere/graphtran/internal/validator"
)

// loadConfig merges the command's flags with the environment and config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the database at path, creating its directory first.
func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

// openConfiguredStore opens the database named by --db, GRAPHTRAN_DB or the
// db key of the config file.
func openConfiguredStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		return nil, &internal.ConfigurationError{Setting: "db", Reason: "no database configured; set --db, GRAPHTRAN_DB or db in graphtran.yaml"}
	}
	return openStore(cfg.DB)
}

// buildTranslator constructs the chunk translator named by cfg.Backend.
func buildTranslator(ctx context.Context, cfg *config.Config, prompt translator.Prompt) (translator.ChunkTranslator, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		return translator.NewGeminiTranslator(cfg.Service(), prompt), nil
	case config.BackendGenAI:
		return translator.NewGenAITranslator(ctx, cfg.Service(), prompt)
	case config.BackendOllama:
		return translator.NewOllamaTranslator(cfg.Service(), prompt), nil
	default:
		return nil, &internal.ConfigurationError{Setting: "backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

// modelName reports the model a translator is bound to, when it exposes one.
func modelName(tr translator.ChunkTranslator) string {
	if m, ok := tr.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// loadRules returns the embedded table, or the one at path when set.
func loadRules(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}

// readDocument reads a whole file, reporting a missing one as NotFoundError.
func readDocument(kind, path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &internal.NotFoundError{Kind: kind, Path: path}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s file: %w", kind, err)
	}
	return string(data), nil
}

// verifyDocuments checks translated against the operators of original and
// prints one line per operator followed by a summary.
func verifyDocuments(w io.Writer, table *rules.Table, original, translated string) error {
	ops, err := extractor.Extract(original)
	if err != nil {
		return fmt.Errorf("failed to extract operators: %w", err)
	}

	report := validator.Verify(ops, table, translated)

	fmt.Fprintln(w, "--- Verifying Translation Rules ---")
	for _, e := range report.Entries() {
		switch {
		case !e.OK:
			fmt.Fprintf(w, "[FAIL] %s\n", e.Message)
		case e.Kind == validator.KindPassThrough:
			fmt.Fprintf(w, "[INFO] %s\n", e.Message)
		default:
			fmt.Fprintf(w, "[PASS] %s\n", e.Message)
		}
	}

	if violations := report.Violations(); len(violations) > 0 {
		fmt.Fprintf(w, "\nFAILURE: %d of %d operators broke the translation rules.\n", len(violations), len(ops))
		return fmt.Errorf("verification failed: %w", report.Err())
	}
	fmt.Fprintf(w, "\nSUCCESS: translated graph follows all %d translation rules checked.\n", len(ops))
	return nil
}

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
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/graphtran/internal"
	"github.com/valpere/graphtran/internal/assembler"
	"github.com/valpere/graphtran/internal/chunker"
	"github.com/valpere/graphtran/internal/orchestrator"
	"github.com/valpere/graphtran/internal/store"
	"github.com/valpere/graphtran/internal/translator"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input_file> <output_file>",
	Short: "Translate a PyTorch graph dump into TTNN ops",
	Long: `Translate a PyTorch graph dump into TTNN ops, one chunk at a time.

The input is split into windows of --chunk-lines lines. Each window is sent
in its own request together with the reference document (--reference) and,
unless --no-rules-context is given, the operator rule table. Code fences are
stripped from every response and the results are joined in order. The
output file is only written when every chunk succeeded.

Every chunk goes to the backend unless --db names a database; with one, chunk
outputs are cached there and the run is recorded for "graphtran history".

Available backends:
  - gemini   Gemini REST API (requires GEMINI_API_KEY)
  - genai    Gemini through the Google GenAI SDK (requires GEMINI_API_KEY)
  - ollama   Local Ollama server`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	cmd.SilenceUsage = true

	inputFile, outputFile := args[0], args[1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if filepath.Clean(inputFile) == filepath.Clean(outputFile) {
		return fmt.Errorf("input file and output file cannot be the same")
	}

	table, err := loadRules(cfg.Rules)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	text, err := readDocument("input", inputFile)
	if err != nil {
		return err
	}
	reference, err := readDocument("reference", cfg.Reference)
	if err != nil {
		return err
	}
	if !cfg.NoRulesContext {
		reference += "\n" + table.Reference()
	}

	chunks, err := chunker.Split(text, cfg.ChunkLines)
	if err != nil {
		return fmt.Errorf("failed to split input: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prompt := translator.DefaultPrompt
	tr, err := buildTranslator(ctx, cfg, prompt)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	if checker, ok := tr.(interface{ IsAvailable(context.Context) error }); ok {
		if err := checker.IsAvailable(ctx); err != nil {
			return err
		}
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}

	// written is set once the output file is in place; later failures such
	// as a broken rule belong to verification, not to the run status.
	var (
		db      *store.Store
		runID   string
		written bool
	)
	if cfg.CacheEnabled() {
		db, err = openStore(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		opts = append(opts, orchestrator.WithCache(db.ChunkCache(tr.Name(), modelName(tr), prompt.Instruction())))

		run, runErr := db.StartRun(ctx, internal.RunRecord{
			InputPath:     inputFile,
			OutputPath:    outputFile,
			ReferencePath: cfg.Reference,
			Backend:       tr.Name(),
			Chunks:        len(chunks),
		})
		if runErr != nil {
			logger.Warn("failed to record run", zap.Error(runErr))
		} else {
			runID = run.ID
			defer func() {
				finishErr := err
				if written {
					finishErr = nil
				}
				// ctx may already be canceled; the record is still written
				if ferr := db.FinishRun(context.Background(), runID, finishErr); ferr != nil {
					logger.Warn("failed to finish run record", zap.String("run", runID), zap.Error(ferr))
				}
			}()
		}
	}

	logger.Info("starting conversion",
		zap.String("input", inputFile),
		zap.String("backend", tr.Name()),
		zap.String("model", modelName(tr)),
		zap.Int("chunks", len(chunks)),
		zap.Int("concurrency", cfg.Concurrency))

	runner := orchestrator.New(tr, orchestrator.Config{
		Concurrency:       cfg.Concurrency,
		MaxAttempts:       cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RPM,
	}, opts...)

	result, err := runner.Run(ctx, chunks, reference)
	if err != nil {
		return err
	}

	out, err := assembler.Assemble(result.Parts)
	if err != nil {
		return fmt.Errorf("failed to assemble output: %w", err)
	}
	if err := assembler.WriteFile(ctx, outputFile, out); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	written = true

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully converted %s to %s\n", inputFile, outputFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Chunks: %d (requests: %d, cached: %d)\n", len(chunks), result.Calls, result.CacheHits)

	if !cfg.Verify {
		return nil
	}
	verifyErr := verifyDocuments(cmd.OutOrStdout(), table, text, out)
	if runID != "" {
		if serr := db.SetRunVerification(context.Background(), runID, verifyErr == nil); serr != nil {
			logger.Warn("failed to record verification", zap.String("run", runID), zap.Error(serr))
		}
	}
	return verifyErr
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.String("reference", "api_docs.json", "Reference document describing the TTNN ops")
	f.String("rules", "", "Operator rule table (YAML); the built-in table is used if empty")
	f.Int("chunk-lines", chunker.DefaultLines, "Lines per chunk")
	f.String("backend", "gemini", "Translation backend: gemini, genai, ollama")
	f.String("model", "", "Model name (backend default if empty)")
	f.String("base-url", "", "Override the backend base URL")
	f.Int("concurrency", 1, "Chunks translated in parallel (1 = sequential)")
	f.Int("max-retries", 3, "Total attempts per chunk including the first (1 = no retries)")
	f.Duration("timeout", 120*time.Second, "Per-request timeout")
	f.Int("rpm", 0, "Maximum requests per minute (0 = unlimited)")
	f.String("db", "", "Database path for the chunk cache and run history (both off if empty)")
	f.Bool("no-cache", false, "Disable the chunk cache and run history even if a database is configured")
	f.Bool("verify", false, "Verify the output against the rule table after writing it")
	f.Bool("no-rules-context", false, "Do not append the rule table to the reference document")
}

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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/batchtran/internal"
	"github.com/valpere/batchtran/internal/detector"
	"github.com/valpere/batchtran/internal/langtag"
	"github.com/valpere/batchtran/internal/orchestrator"
	"github.com/valpere/batchtran/internal/prompt"
)

// detectSampleRunes bounds the text used to guess the source language.
const detectSampleRunes = 2000

var (
	inputFile   string
	outputFile  string
	sourceLang  string
	targetLangs string
	contextFile string

	noThink          bool
	skipVerification bool
	ensureChanged    bool
	checkLanguage    bool

	translationPromptFile  string
	verificationPromptFile string

	reportFile string
	dbPath     string
	resumeID   string
	failFast   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a JSON resource file",
	Long: `Translate every string of a JSON resource file into one or more languages.

Strings are sent in token-bounded batches. Each returned translation must be
non-empty and keep every placeholder ({{name}} by default); rejected items are
sent again with a note describing the problem. A second session then verifies
each translation and may correct it (--skip-verification to disable).

Several targets are processed concurrently: --output-language fr,de,uk
with an output path containing {lang}, e.g. -o locales/{lang}.json

Resumable runs:
  --checkpoint  journal accepted items in a SQLite database
  --resume      continue a journaled run by id (see "batchtran runs list")`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := appConfig

		targets, err := langtag.ParseList(targetLangs)
		if err != nil {
			return err
		}
		if len(targets) > 1 && !strings.Contains(outputFile, langPlaceholder) {
			return fmt.Errorf("output path must contain %s when translating into several languages", langPlaceholder)
		}
		if resumeID != "" && (dbPath == "" || len(targets) > 1) {
			return fmt.Errorf("--resume needs --checkpoint and a single output language")
		}
		for _, t := range targets {
			if outputPath(outputFile, t) == inputFile {
				return fmt.Errorf("input file and output file cannot be the same")
			}
		}

		doc, err := readDocument(inputFile, c.Delimiter)
		if err != nil {
			return err
		}
		contexts, err := readContexts(contextFile, c.Delimiter)
		if err != nil {
			return err
		}

		overrides := prompt.Overrides{}
		if overrides.Translation, err = readPrompt(translationPromptFile); err != nil {
			return err
		}
		if overrides.Verification, err = readPrompt(verificationPromptFile); err != nil {
			return err
		}
		if err := overrides.Validate(); err != nil {
			return err
		}

		var det *detector.Detector
		if sourceLang == langtag.Auto || checkLanguage {
			det = detector.New()
		}
		source := sourceLang
		if source == langtag.Auto {
			detected, ok := det.DetectSample(doc.values(), detectSampleRunes)
			if !ok {
				return fmt.Errorf("could not detect the source language, set --input-language")
			}
			source = detected
			logger.Info().Str("language", source).Msg("detected source language")
		} else if source, err = langtag.Parse(source); err != nil {
			return err
		}

		db, err := openStore(dbPath)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		deps := pipelineDeps{config: c, log: logger, db: db, detector: det, progress: progressSink(logger)}
		opts := translateOptions{
			Think:            !noThink,
			SkipVerification: skipVerification,
			EnsureChanged:    ensureChanged,
			CheckLanguage:    checkLanguage,
			Prompts:          overrides,
			ReportFile:       reportFile,
		}

		var pipelines []orchestrator.Pipeline[*translationOutcome]
		for _, target := range targets {
			req := internal.TranslationRequest{
				ID:         resumeID,
				InputFile:  inputFile,
				OutputFile: outputPath(outputFile, target),
				SourceLang: source,
				TargetLang: target,
				Timestamp:  time.Now(),
			}
			pipelines = append(pipelines, orchestrator.Pipeline[*translationOutcome]{
				Name: target,
				Run: func(ctx context.Context) (*translationOutcome, error) {
					return translateDocument(ctx, deps, doc, contexts, req, opts)
				},
			})
		}

		orch := orchestrator.New[*translationOutcome](orchestrator.OrchestratorConfig{
			Concurrency: c.Concurrency,
			FailFast:    failFast,
			Logger:      logger,
		})
		result := orch.Execute(ctx, pipelines)

		for _, r := range result.Results {
			if r.Err != nil {
				logFatal(logger, r.Err)
				fmt.Fprintf(os.Stderr, "Failed to translate into %s: %v\n", r.Name, r.Err)
				continue
			}
			o := r.Value
			fmt.Printf("Successfully translated %s to %s: %s (%d strings", o.Request.SourceLang, o.Request.TargetLang, o.Request.OutputFile, len(o.Items))
			if o.Resumed > 0 {
				fmt.Printf(", %d from checkpoint", o.Resumed)
			}
			fmt.Print(")\n")
			if o.Request.ID != "" {
				fmt.Printf("  run: %s\n", o.Request.ID)
			}
			if o.Report.Cost != nil {
				fmt.Printf("  estimated cost: $%.4f\n", o.Report.Cost.Total)
			}
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d languages failed", result.Failed, len(pipelines))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input JSON file to translate (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file, may contain {lang} (required)")
	translateCmd.Flags().StringVarP(&sourceLang, "input-language", "s", langtag.Auto, "Source language code, or auto to detect it")
	translateCmd.Flags().StringVarP(&targetLangs, "output-language", "t", "", "Target language codes, comma-separated (required)")
	translateCmd.Flags().StringVar(&contextFile, "context-file", "", "JSON file with the input's shape holding context notes per string")

	translateCmd.Flags().BoolVar(&noThink, "no-think", false, "Do not ask for reasoning before each translation")
	translateCmd.Flags().BoolVar(&skipVerification, "skip-verification", false, "Skip the verification pass")
	translateCmd.Flags().BoolVar(&ensureChanged, "ensure-changed", false, "Reject translations identical to the original")
	translateCmd.Flags().BoolVar(&checkLanguage, "check-language", false, "Reject translations detected in another language")

	translateCmd.Flags().StringVar(&translationPromptFile, "translation-prompt", "", "Custom translation prompt template file")
	translateCmd.Flags().StringVar(&verificationPromptFile, "verification-prompt", "", "Custom verification prompt template file")

	translateCmd.Flags().StringVar(&reportFile, "report", "", "Write a per-item report with telemetry, may contain {lang}")
	translateCmd.Flags().StringVar(&dbPath, "checkpoint", "", "SQLite database journaling accepted items")
	translateCmd.Flags().StringVar(&resumeID, "resume", "", "Resume the journaled run with this id")
	translateCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop all languages after the first failure")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
	translateCmd.MarkFlagRequired("output-language")
}

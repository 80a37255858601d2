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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/batchtran/internal"
	"github.com/valpere/batchtran/internal/langtag"
	"github.com/valpere/batchtran/internal/prompt"
)

var (
	gradeInputFile       string
	gradeTranslationFile string
	gradeOutputFile      string
	gradeSourceLang      string
	gradeTargetLang      string
	gradeContextFile     string
	gradingPromptFile    string
	gradeDBPath          string
	gradeResumeID        string
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Score an existing translation against a rubric",
	Long: `Grade every translated string of a JSON resource file against its source.

Each string is scored on accuracy, formatting, fluency, consistency and
cultural adaptation (maxima configurable under "rubric" in batchtran.yaml).
Scores outside their range are sent back to the model until they are valid.

The report is written to graded_<translation file name>.json next to the
translation unless -o is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := appConfig

		source, err := langtag.Parse(gradeSourceLang)
		if err != nil {
			return err
		}
		target, err := langtag.Parse(gradeTargetLang)
		if err != nil {
			return err
		}
		if gradeResumeID != "" && gradeDBPath == "" {
			return fmt.Errorf("--resume needs --checkpoint")
		}

		src, err := readDocument(gradeInputFile, c.Delimiter)
		if err != nil {
			return err
		}
		translation, err := readDocument(gradeTranslationFile, c.Delimiter)
		if err != nil {
			return err
		}
		contexts, err := readContexts(gradeContextFile, c.Delimiter)
		if err != nil {
			return err
		}
		tmpl, err := readPrompt(gradingPromptFile)
		if err != nil {
			return err
		}
		if err := (prompt.Overrides{Grading: tmpl}).Validate(); err != nil {
			return err
		}
		r, err := c.RubricTable()
		if err != nil {
			return err
		}

		out := gradeOutputFile
		if out == "" {
			out = gradedPath(gradeTranslationFile)
		}

		db, err := openStore(gradeDBPath)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		deps := pipelineDeps{config: c, log: logger, db: db, progress: progressSink(logger)}
		rep, err := gradeDocument(ctx, deps, src, translation, contexts, internal.GradingRequest{
			ID:              gradeResumeID,
			InputFile:       gradeInputFile,
			TranslationFile: gradeTranslationFile,
			OutputFile:      out,
			SourceLang:      source,
			TargetLang:      target,
			Timestamp:       time.Now(),
		}, gradeOptions{Prompt: tmpl, Rubric: r})
		if err != nil {
			logFatal(logger, err)
			return err
		}

		fmt.Printf("Graded %d strings: average %.1f of %.0f, %d marked invalid\n",
			rep.Summary.Items, rep.Summary.Average, rep.Summary.Maximum, rep.Summary.Invalid)
		if rep.Summary.Skipped > 0 {
			fmt.Fprintf(os.Stderr, "%d strings had no translation and were skipped\n", rep.Summary.Skipped)
		}
		if rep.Request.ID != "" {
			fmt.Printf("  run: %s\n", rep.Request.ID)
		}
		fmt.Printf("Report written to %s\n", out)
		return nil
	},
}

// gradedPath returns graded_<name>.json in the directory of path.
func gradedPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), "graded_"+name+".json")
}

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().StringVarP(&gradeInputFile, "input", "i", "", "Source JSON file (required)")
	gradeCmd.Flags().StringVarP(&gradeTranslationFile, "translation", "r", "", "Translated JSON file to grade (required)")
	gradeCmd.Flags().StringVarP(&gradeOutputFile, "output", "o", "", "Report file (default graded_<translation>.json)")
	gradeCmd.Flags().StringVarP(&gradeSourceLang, "input-language", "s", "", "Source language code (required)")
	gradeCmd.Flags().StringVarP(&gradeTargetLang, "output-language", "t", "", "Language of the translation (required)")
	gradeCmd.Flags().StringVar(&gradeContextFile, "context-file", "", "JSON file with the input's shape holding context notes per string")
	gradeCmd.Flags().StringVar(&gradingPromptFile, "grading-prompt", "", "Custom grading prompt template file")
	gradeCmd.Flags().StringVar(&gradeDBPath, "checkpoint", "", "SQLite database journaling graded items")
	gradeCmd.Flags().StringVar(&gradeResumeID, "resume", "", "Resume the journaled run with this id")

	gradeCmd.MarkFlagRequired("input")
	gradeCmd.MarkFlagRequired("translation")
	gradeCmd.MarkFlagRequired("input-language")
	gradeCmd.MarkFlagRequired("output-language")
}

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
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/batchtran/internal/store"
)

var runsDBPath string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage checkpointed runs",
	Long:  `List, inspect, and delete runs journaled with --checkpoint.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all journaled runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(runsDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No journaled runs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSOURCE\tTARGET\tMODEL\tSTATUS\tITEMS\tUPDATED\tINPUT")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.Kind, r.SourceLang, r.TargetLang, r.Model, r.Status,
				r.Items, r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.InputFile)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(runsDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		r, err := db.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		counts, err := db.PhaseCounts(cmd.Context(), r.ID)
		if err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}

		fmt.Printf("Run:       %s\n", r.ID)
		fmt.Printf("Kind:      %s\n", r.Kind)
		fmt.Printf("Status:    %s\n", r.Status)
		fmt.Printf("Input:     %s\n", r.InputFile)
		fmt.Printf("Output:    %s\n", r.OutputFile)
		fmt.Printf("Languages: %s -> %s\n", r.SourceLang, r.TargetLang)
		fmt.Printf("Engine:    %s (%s)\n", r.Engine, r.Model)
		fmt.Printf("Created:   %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:   %s\n", r.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

		phases := make([]string, 0, len(counts))
		for p := range counts {
			phases = append(phases, p)
		}
		sort.Strings(phases)
		for _, p := range phases {
			fmt.Printf("Accepted in %-10s %d\n", p+":", counts[p])
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a journaled run by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(runsDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run: %s\n", args[0])
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("batchtran %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)

	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "./data/batchtran.db", "Database path")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

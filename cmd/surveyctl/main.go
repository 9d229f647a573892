package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abduss/stopsurvey/internal/app"
	"github.com/abduss/stopsurvey/internal/auth"
	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/submission"
	"github.com/abduss/stopsurvey/internal/survey"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp loads configuration and wires the pipeline. The caller must defer a.Close().
func newApp(ctx context.Context, verbose bool) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := zap.NewNop()
	if verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "surveyctl",
	Short:        "Operate the stop survey intake pipeline",
	SilenceUsage: true,
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List survey variants and their ledger columns",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, v := range survey.All() {
			fmt.Fprintf(out, "%-12s  %s\n", v.Name, v.Title)
			fmt.Fprintf(out, "%-12s  columns: %s\n", "", strings.Join(v.Header(), ", "))
		}
	},
}

var hashPINCmd = &cobra.Command{
	Use:   "hash-pin PIN",
	Short: "Hash a staff PIN for the catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cost, _ := cmd.Flags().GetInt("cost")
		hash, err := auth.HashPIN(args[0], cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit VARIANT",
	Short: "Submit one survey record from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, _ := cmd.Flags().GetStringArray("field")
		paths, _ := cmd.Flags().GetStringArray("media")
		resumePath, _ := cmd.Flags().GetString("resume")
		verbose, _ := cmd.Flags().GetBool("verbose")

		rec, err := buildRecord(args[0], fields, paths)
		if err != nil {
			return err
		}
		resume, err := readResume(resumePath)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Orchestrator.Submit(cmd.Context(), rec, resume)
		if err != nil {
			if f, ok := submission.AsFailure(err); ok && f.Stage != submission.StateValidating {
				payload, _ := json.MarshalIndent(f.Resume(), "", "  ")
				fmt.Fprintf(cmd.ErrOrStderr(), "resume with --resume <file> containing:\n%s\n", payload)
			}
			for _, v := range survey.Violations(err) {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", v.Field, v.Message)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "submission %s recorded in %q\n", result.SubmissionID, result.LedgerKey)
		for _, ref := range result.References {
			fmt.Fprintf(out, "  %s\n", ref.Link())
		}
		return nil
	},
}

var rowsCmd = &cobra.Command{
	Use:   "rows VARIANT LEDGER",
	Short: "Print a ledger as CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		table, rows, err := a.Orchestrator.Rows(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		w := csv.NewWriter(cmd.OutOrStdout())
		if err := w.Write(table.Header); err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		return w.Error()
	},
}

// buildRecord turns k=v pairs and file paths into a record. Repeated keys build
// multi-choice answers.
func buildRecord(variant string, fields, paths []string) (survey.Record, error) {
	rec := survey.Record{Variant: variant, Answers: survey.Answers{}}
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return survey.Record{}, fmt.Errorf("field %q: expected key=value", f)
		}
		rec.Answers.Add(strings.TrimSpace(k), v)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return survey.Record{}, fmt.Errorf("read media: %w", err)
		}
		rec.Media = append(rec.Media, survey.MediaItem{Filename: filepath.Base(p), Data: data})
	}
	return rec, nil
}

func readResume(path string) (*submission.Resume, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	var r submission.Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse resume: %w", err)
	}
	return &r, nil
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline steps to stderr")

	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(hashPINCmd)
	hashPINCmd.Flags().Int("cost", 12, "bcrypt cost")
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArrayP("field", "f", nil, "Answer as key=value; repeat for multi-choice")
	submitCmd.Flags().StringArrayP("media", "m", nil, "Photo or video file in attachment order")
	submitCmd.Flags().String("resume", "", "JSON file with references from a failed attempt")
	rootCmd.AddCommand(rowsCmd)
}

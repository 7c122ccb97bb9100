package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/assessor/internal/assessment"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/scoring"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export enriched results as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("kind", "k", "", "Assessment kind to export (placement, proficiency)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Float64("advanced-threshold", scoring.DefaultAdvancedThreshold, "Percentage at or above which the Advanced level is recommended")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	kind, err := model.ParseKind(v.GetString("kind"))
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := assessment.New(kind, db, db, assessment.WithAdvancedThreshold(v.GetFloat64("advanced-threshold")))
	results, err := svc.Export(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	if results == nil {
		results = []model.ExportedResult{}
	}

	export := model.ResultExport{
		Kind:       kind,
		ExportedAt: time.Now().UTC(),
		NumResults: len(results),
		Results:    results,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	fmt.Fprintln(cmd.ErrOrStderr(), appI18n.Tp(cmd.Context(), "ResultsExported", len(results)))
	return nil
}

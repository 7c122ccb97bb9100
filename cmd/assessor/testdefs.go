package main

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/assessor/internal/model"
)

func testsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "List test definitions and change their status",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List test definitions of a kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			tests, err := db.ListTests(cmd.Context(), kind)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tSTATUS\tQUESTIONS\tTITLE")
			for _, t := range tests {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", t.ID, t.Slug, t.Status, len(t.Questions), t.Title)
			}
			return w.Flush()
		},
	}
	addCommonFlags(list)
	list.Flags().StringP("kind", "k", string(model.KindPlacement), "Assessment kind (placement, proficiency)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Publish, archive or return a test to draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			st := model.TestStatus(v.GetString("status"))
			switch st {
			case model.TestDraft, model.TestPublished, model.TestArchived:
			default:
				return fmt.Errorf("unknown status %q", st)
			}
			db, err := openStore(v)
			if err != nil {
				return err
			}
			defer db.Close()
			id := v.GetInt64("id")
			if err := db.SetTestStatus(cmd.Context(), id, st); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("test %d does not exist", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test %d is now %s\n", id, st)
			return nil
		},
	}
	addCommonFlags(status)
	status.Flags().Int64("id", 0, "Test ID")
	status.Flags().String("status", string(model.TestPublished), "New status (draft, published, archived)")
	_ = status.MarkFlagRequired("id")

	cmd.AddCommand(list, status)
	return cmd
}

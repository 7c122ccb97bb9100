package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/assessor/internal/model"
)

func studentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage students and their attempt cohort",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a student",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			cohort := model.Cohort(v.GetString("cohort"))
			if cohort != model.CohortStandard && cohort != model.CohortProficiencyOnly {
				return fmt.Errorf("unknown cohort %q", cohort)
			}
			db, err := openStore(v)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.UpsertStudent(cmd.Context(), model.Student{
				ID:          v.GetString("id"),
				DisplayName: v.GetString("name"),
				Cohort:      cohort,
			})
		},
	}
	addCommonFlags(add)
	add.Flags().String("id", "", "Student ID")
	add.Flags().String("name", "", "Display name")
	add.Flags().String("cohort", string(model.CohortStandard), "Attempt cohort (standard, proficiency_only)")
	_ = add.MarkFlagRequired("id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List students",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(v)
			if err != nil {
				return err
			}
			defer db.Close()
			students, err := db.ListStudents(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOHORT")
			for _, st := range students {
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.ID, st.DisplayName, st.Cohort)
			}
			return w.Flush()
		},
	}
	addCommonFlags(list)

	cmd.AddCommand(add, list)
	return cmd
}

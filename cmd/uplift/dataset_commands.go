package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"uplift/internal/api"
)

func newDatasetCommand(ctx *commandContext) *cobra.Command {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Upload and manage datasets",
	}

	datasetCmd.AddCommand(newDatasetAddCommand(ctx))
	datasetCmd.AddCommand(newDatasetListCommand(ctx))
	datasetCmd.AddCommand(newDatasetShowCommand(ctx))
	datasetCmd.AddCommand(newDatasetDeleteCommand(ctx))

	return datasetCmd
}

func newDatasetAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <csv-file>",
		Short: "Upload a CSV panel for modeling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			csv, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read csv: %w", err)
			}
			if strings.TrimSpace(name) == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			detail, err := ctx.client().CreateDataset(cmd.Context(), api.CreateDatasetRequest{
				Name: name,
				CSV:  string(csv),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset %s created (%d rows)\n", detail.ID, detail.RowCount)
			if detail.Validation != nil {
				printValidation(out, detail.Validation.Errors, detail.Validation.Warnings)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Dataset name (defaults to the file name)")
	return cmd
}

func newDatasetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets, err := ctx.client().Datasets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(datasets) == 0 {
				fmt.Fprintln(out, "No datasets uploaded")
				return nil
			}

			rows := make([][]string, 0, len(datasets))
			for _, ds := range datasets {
				rows = append(rows, []string{
					ds.ID,
					ds.Name,
					fmt.Sprintf("%d", ds.RowCount),
					ds.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Rows", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newDatasetShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset-id>",
		Short: "Show a dataset and its validation summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := ctx.client().DescribeDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset:  %s\n", detail.ID)
			fmt.Fprintf(out, "Name:     %s\n", detail.Name)
			fmt.Fprintf(out, "Rows:     %d\n", detail.RowCount)
			fmt.Fprintf(out, "Created:  %s\n", detail.CreatedAt.Format("2006-01-02 15:04"))

			v := detail.Validation
			if v == nil {
				fmt.Fprintln(out, "No validation summary recorded")
				return nil
			}
			fmt.Fprintf(out, "Grain:    %s\n", v.Grain)
			fmt.Fprintf(out, "Coverage: %.1f months, %d entities\n", v.TimeCoverageMonths, v.EntityCount)
			if len(v.ColumnTypes.Drivers) > 0 {
				fmt.Fprintf(out, "Drivers:  %s\n", strings.Join(v.ColumnTypes.Drivers, ", "))
			}
			if len(v.ColumnTypes.Controls) > 0 {
				fmt.Fprintf(out, "Controls: %s\n", strings.Join(v.ColumnTypes.Controls, ", "))
			}
			printValidation(out, v.Errors, v.Warnings)
			return nil
		},
	}
}

func newDatasetDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Delete a dataset and all of its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s deleted\n", args[0])
			return nil
		},
	}
}

func printValidation(out io.Writer, errs, warnings []string) {
	for _, e := range errs {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
}

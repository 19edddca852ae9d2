package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"uplift/internal/api"
	"uplift/internal/apiclient"
	"uplift/internal/contrib"
	"uplift/internal/diagnostics"
	"uplift/internal/run"
	"uplift/internal/store"
)

// printer formats totals with thousands separators.
var printer = message.NewPrinter(language.English)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Create and inspect model runs",
	}

	runCmd.AddCommand(newRunCreateCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))
	runCmd.AddCommand(newRunStatusCommand(ctx))
	runCmd.AddCommand(newRunShowCommand(ctx))
	runCmd.AddCommand(newRunDeleteCommand(ctx))

	return runCmd
}

func newRunCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		datasetID     string
		drivers       []string
		controls      []string
		grain         string
		target        string
		decay         float64
		saturation    bool
		noSeasonality bool
		noTrend       bool
		wait          bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a run and start its pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := run.Spec{
				Grain:     run.Grain(strings.ToUpper(strings.TrimSpace(grain))),
				TargetCol: target,
				Drivers:   drivers,
				Controls:  controls,
			}
			if decay > 0 {
				spec.FeatureConfig.Adstock.DecayDefault = decay
			}
			disabled := false
			if saturation {
				enabled := true
				spec.FeatureConfig.Saturation.Enabled = &enabled
			}
			if noSeasonality {
				spec.FeatureConfig.Seasonality.Enabled = &disabled
			}
			if noTrend {
				spec.FeatureConfig.Trend.Enabled = &disabled
			}

			client := ctx.client()
			detail, err := client.CreateRun(cmd.Context(), api.CreateRunRequest{
				DatasetID: datasetID,
				Spec:      spec,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s created on dataset %s\n", detail.ID, detail.DatasetID)
			if !wait {
				fmt.Fprintf(out, "Poll with: uplift run status %s\n", detail.ID)
				return nil
			}
			return waitForRun(cmd, client, detail.ID)
		},
	}

	cmd.Flags().StringVar(&datasetID, "dataset", "", "Dataset to model (required)")
	cmd.Flags().StringSliceVar(&drivers, "drivers", nil, "Activity driver columns (act_*)")
	cmd.Flags().StringSliceVar(&controls, "controls", nil, "Control columns (ctrl_*)")
	cmd.Flags().StringVar(&grain, "grain", "", "Time grain: WEEK or MONTH")
	cmd.Flags().StringVar(&target, "target", "", "Target column (defaults to sales)")
	cmd.Flags().Float64Var(&decay, "decay", 0, "Default adstock decay in [0,1]")
	cmd.Flags().BoolVar(&saturation, "saturation", false, "Enable Hill saturation (off by default)")
	cmd.Flags().BoolVar(&noSeasonality, "no-seasonality", false, "Disable Fourier seasonality")
	cmd.Flags().BoolVar(&noTrend, "no-trend", false, "Disable the linear trend feature")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the run finishes")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func waitForRun(cmd *cobra.Command, client *apiclient.Client, runID string) error {
	out := cmd.OutOrStdout()
	lastStage := ""
	for {
		status, err := client.RunStatus(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if string(status.Stage) != lastStage {
			lastStage = string(status.Stage)
			fmt.Fprintf(out, "  %s (%d%%)\n", status.Stage, status.Progress)
		}
		if status.IsComplete() {
			fmt.Fprintf(out, "Run %s finished\n", runID)
			return nil
		}
		if status.IsError() {
			return fmt.Errorf("run %s failed: %s", runID, status.Error)
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func newRunListCommand(ctx *commandContext) *cobra.Command {
	var datasetID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := ctx.client().Runs(cmd.Context(), datasetID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.DatasetID,
					colorizeStatus(r.Stage, colorize),
					fmt.Sprintf("%d%%", r.Progress),
					r.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Dataset", "Stage", "Progress", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetID, "dataset", "", "Only show runs for this dataset")
	return cmd
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the lifecycle status of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().RunStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Stage:    %s\n", colorizeStatus(string(status.Stage), colorize))
			fmt.Fprintf(out, "Progress: %d%%\n", status.Progress)
			if status.StartedAt != nil {
				fmt.Fprintf(out, "Started:  %s\n", status.StartedAt.Format(time.RFC3339))
			}
			if status.UpdatedAt != nil {
				fmt.Fprintf(out, "Updated:  %s\n", status.UpdatedAt.Format(time.RFC3339))
			}
			if status.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", status.Error)
			}
			return nil
		},
	}
}

func newRunDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s deleted\n", args[0])
			return nil
		},
	}
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show model outputs: fit, contributions, ROI, diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			runID := args[0]
			out := cmd.OutOrStdout()

			status, err := client.RunStatus(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if !status.IsComplete() {
				if status.IsError() {
					return fmt.Errorf("run %s failed: %s", runID, status.Error)
				}
				return fmt.Errorf("run %s has no outputs yet (stage %s, %d%%)", runID, status.Stage, status.Progress)
			}

			if err := printFitSection(cmd, client, runID, out); err != nil {
				return err
			}
			if err := printContributionSection(cmd, client, runID, out); err != nil {
				return err
			}
			if err := printROISection(cmd, client, runID, out); err != nil {
				return err
			}
			return printDiagnosticsSection(cmd, client, runID, out)
		},
	}
}

func fetchOutput(cmd *cobra.Command, client *apiclient.Client, runID, kind string, dest any) error {
	payload, err := client.Output(cmd.Context(), runID, kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func printFitSection(cmd *cobra.Command, client *apiclient.Client, runID string, out io.Writer) error {
	var fit contrib.FitMetrics
	if err := fetchOutput(cmd, client, runID, store.ArtifactFitMetrics, &fit); err != nil {
		return err
	}
	fmt.Fprintln(out, "Model fit")
	fmt.Fprintf(out, "  MAPE: %.2f%%   RMSE: %.2f   R2: %.3f\n\n", fit.MAPE, fit.RMSE, fit.R2)
	return nil
}

func printContributionSection(cmd *cobra.Command, client *apiclient.Client, runID string, out io.Writer) error {
	var summary contrib.Summary
	if err := fetchOutput(cmd, client, runID, store.ArtifactContributionSummary, &summary); err != nil {
		return err
	}

	fmt.Fprintln(out, "Sales decomposition")
	fmt.Fprintf(out, "  Actual sales:    %s\n", printer.Sprintf("%.0f", summary.TotalActualSales))
	fmt.Fprintf(out, "  Predicted sales: %s\n", printer.Sprintf("%.0f", summary.TotalPredictedSales))

	rows := [][]string{
		{
			"baseline (intercept)",
			printer.Sprintf("%.0f", summary.Baseline.InterceptTotal),
			"",
		},
		{
			"baseline (controls)",
			printer.Sprintf("%.0f", summary.Baseline.ControlsTotal),
			fmt.Sprintf("%.1f%%", summary.Baseline.PercentOfSales),
		},
	}
	for _, name := range sortedKeys(summary.Channels) {
		ch := summary.Channels[name]
		rows = append(rows, []string{
			name,
			printer.Sprintf("%.0f", ch.TotalContribution),
			fmt.Sprintf("%.1f%%", ch.PercentOfSales),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Component", "Contribution", "% of sales"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	fmt.Fprintln(out)
	return nil
}

func printROISection(cmd *cobra.Command, client *apiclient.Client, runID string, out io.Writer) error {
	var roi contrib.ROIMetrics
	if err := fetchOutput(cmd, client, runID, store.ArtifactROIMetrics, &roi); err != nil {
		return err
	}

	fmt.Fprintln(out, "Channel ROI")
	if roi.Error != "" {
		fmt.Fprintf(out, "  %s\n\n", roi.Error)
		return nil
	}

	rows := make([][]string, 0, len(roi.Channels))
	for _, name := range sortedKeys(roi.Channels) {
		ch := roi.Channels[name]
		if ch.Error != "" {
			fmt.Fprintf(out, "  %s: %s\n", name, ch.Error)
			continue
		}
		rows = append(rows, []string{
			name,
			printer.Sprintf("%.0f", ch.TotalSpend),
			printer.Sprintf("%.0f", ch.TotalContribution),
			fmt.Sprintf("%.2f", ch.ROAS),
			fmt.Sprintf("%.2f", ch.ROI),
			ch.Efficiency,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Channel", "Spend", "Contribution", "ROAS", "ROI", "Sales per $"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(out)
	return nil
}

func printDiagnosticsSection(cmd *cobra.Command, client *apiclient.Client, runID string, out io.Writer) error {
	var report diagnostics.Report
	if err := fetchOutput(cmd, client, runID, store.ArtifactDiagnostics, &report); err != nil {
		return err
	}

	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Sampling diagnostics: %s\n", colorizeStatus(report.OverallStatus, colorize))
	fmt.Fprintf(out, "  Max R-hat:     %.4f\n", report.Convergence.MaxRhat)
	fmt.Fprintf(out, "  Min bulk ESS:  %.0f\n", report.SamplingQuality.MinESSBulk)
	fmt.Fprintf(out, "  Min tail ESS:  %.0f\n", report.SamplingQuality.MinESSTail)
	fmt.Fprintf(out, "  Divergences:   %d (%.3f%%)\n",
		report.SamplingQuality.NDivergences, report.SamplingQuality.DivergenceRate*100)
	fmt.Fprintf(out, "  Min E-BFMI:    %.3f\n", report.SamplingQuality.EBFMI.Min)
	for _, warning := range report.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warning)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

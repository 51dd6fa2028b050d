package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sollist/internal/adapters/reports"
	"sollist/internal/core"
	"sollist/internal/graph"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "sollist",
		Short:        "Compare planned room quantities with a building model",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVarP(&a.building, "building", "b", "", "building the command operates on")
	flags.BoolVar(&a.trace, "trace", false, "write one JSON trace line per operation to stderr")

	root.AddCommand(
		newAnalyzeCmd(a),
		newReconcileCmd(a),
		newSyncCmd(a),
		newRemoveCmd(a),
		newSnapshotCmd(a),
		newRunsCmd(a),
		newReportsCmd(a),
	)
	return root
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		plannedRef string
		recordsRef string
		publish    bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare the planned table with extracted records and store the run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			planned, err := a.loadPlanned(ctx, plannedRef)
			if err != nil {
				return err
			}
			records, err := a.loadRecords(ctx, recordsRef)
			if err != nil {
				return err
			}
			run, err := a.svc.AnalyzeBuilding(ctx, a.building, planned, records)
			if err != nil {
				return err
			}
			if publish {
				if _, err := a.publisher.PublishRun(ctx, run); err != nil {
					return err
				}
			}
			if asJSON {
				art, err := reports.RenderRun(reports.FormatJSON, run)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(append(art.Payload, '\n'))
				return err
			}
			return printRun(a.stdout, run)
		},
	}
	cmd.Flags().StringVar(&plannedRef, "planned", "", "planned table (YAML file, - or blob:<key>)")
	cmd.Flags().StringVar(&recordsRef, "records", "", "extracted records (JSON file, - or blob:<key>)")
	cmd.Flags().BoolVar(&publish, "publish", false, "store CSV and JSON reports in the blob store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	_ = cmd.MarkFlagRequired("planned")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var (
		recordsRef string
		publish    bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Diff extracted records against the building's last snapshot and store the merged set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			records, err := a.loadRecords(ctx, recordsRef)
			if err != nil {
				return err
			}
			diff, err := a.svc.ReconcileSnapshot(ctx, a.building, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "added %d, updated %d, unchanged %d, removed %d\n", diff.Added, diff.Updated, diff.Unchanged, len(diff.Removed))
			for _, name := range diff.Removed {
				fmt.Fprintf(a.stdout, "  removed %s\n", name)
			}
			if publish {
				id := uuid.NewString()
				if _, err := a.publisher.PublishDiff(ctx, a.building, id, diff); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "report %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordsRef, "records", "", "extracted records (JSON file, - or blob:<key>)")
	cmd.Flags().BoolVar(&publish, "publish", false, "store the diff report in the blob store")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		recordsRef string
		modelRef   string
		outRef     string
		runID      string
		bag        string
		mode       string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write the deviations of an analysis run into a model document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m := graph.Mode(strings.ToLower(mode))
			if m != graph.ModeUpsert && m != graph.ModeCreate {
				return fmt.Errorf("unknown mode %q", mode)
			}
			run, err := a.resolveRun(runID)
			if err != nil {
				return err
			}
			records, err := a.loadRecords(ctx, recordsRef)
			if err != nil {
				return err
			}
			doc, err := a.loadModel(ctx, modelRef)
			if err != nil {
				return err
			}
			res, err := a.svc.WriteBack(ctx, doc, run, records, core.WriteBackOptions{BagName: a.bagName(bag), Mode: m})
			if err != nil {
				return err
			}
			if outRef == "" {
				outRef = modelRef
			}
			if err := a.saveModel(ctx, outRef, doc); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "run %s: updated %d, skipped %d\n", run.ID, res.Updated, res.Skipped)
			for _, w := range res.Warnings {
				fmt.Fprintf(a.stderr, "  %s: %s\n", w.Key, w.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordsRef, "records", "", "extracted records (JSON file, - or blob:<key>)")
	cmd.Flags().StringVar(&modelRef, "model", "", "model document (JSON file or blob:<key>)")
	cmd.Flags().StringVar(&outRef, "out", "", "where to write the updated model; defaults to --model")
	cmd.Flags().StringVar(&runID, "run", "", "analysis run to write; defaults to the building's latest run")
	cmd.Flags().StringVar(&bag, "bag", "", "attribute bag name; defaults to the configured bag")
	cmd.Flags().StringVar(&mode, "mode", string(graph.ModeUpsert), "upsert or create")
	_ = cmd.MarkFlagRequired("records")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var (
		modelRef string
		outRef   string
		bag      string
	)
	cmd := &cobra.Command{
		Use:   "remove [space...]",
		Short: "Detach an attribute bag from the named spaces, or from every space",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.loadModel(ctx, modelRef)
			if err != nil {
				return err
			}
			res, err := a.svc.RemoveBags(ctx, doc, a.bagName(bag), args...)
			if err != nil {
				return err
			}
			if outRef == "" {
				outRef = modelRef
			}
			if err := a.saveModel(ctx, outRef, doc); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "detached %d, skipped %d, disposed %d\n", res.Updated, res.Skipped, res.Removed)
			for _, w := range res.Warnings {
				fmt.Fprintf(a.stderr, "  %s: %s\n", w.Key, w.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelRef, "model", "", "model document (JSON file or blob:<key>)")
	cmd.Flags().StringVar(&outRef, "out", "", "where to write the updated model; defaults to --model")
	cmd.Flags().StringVar(&bag, "bag", "", "attribute bag name; defaults to the configured bag")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the building's last reconciled record set",
		RunE: func(*cobra.Command, []string) error {
			snap, err := a.svc.GetSnapshot(a.building)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(snap))
			for name := range snap {
				names = append(names, name)
			}
			sort.Strings(names)
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tQUANTITY")
			for _, name := range names {
				e := snap[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Category, core.FormatQuantity(e.Quantity))
			}
			return tw.Flush()
		},
	}
}

func newRunsCmd(a *app) *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Inspect stored analysis runs"}
	runs.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List runs, optionally of one building",
			RunE: func(*cobra.Command, []string) error {
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tBUILDING\tCREATED\tROWS")
				for _, run := range a.svc.ListRuns(a.building) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", run.ID, run.Building, run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), len(run.Rows))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print one run",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				run, err := a.svc.GetRun(args[0])
				if err != nil {
					return err
				}
				return printRun(a.stdout, run)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.DeleteRun(cmd.Context(), args[0])
			},
		},
	)
	return runs
}

func newReportsCmd(a *app) *cobra.Command {
	reportsCmd := &cobra.Command{Use: "reports", Short: "Inspect published reports"}
	reportsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List published reports, optionally of one building",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := a.publisher.List(cmd.Context(), a.building)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tTYPE")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.ContentType)
			}
			return tw.Flush()
		},
	})
	return reportsCmd
}

// resolveRun returns the run with id, or the latest run of the selected
// building when id is empty.
func (a *app) resolveRun(id string) (core.AnalysisRun, error) {
	if id != "" {
		return a.svc.GetRun(id)
	}
	runs := a.svc.ListRuns(a.building)
	if strings.TrimSpace(a.building) == "" || len(runs) == 0 {
		return core.AnalysisRun{}, errors.New("no run selected: pass --run or a --building with stored runs")
	}
	return runs[len(runs)-1], nil
}

func printRun(w io.Writer, run core.AnalysisRun) error {
	fmt.Fprintf(w, "run %s  building %s  tolerance [%g, %g]  skipped rows %d\n",
		run.ID, run.Building, run.Tolerance.MinPct, run.Tolerance.MaxPct, run.SkippedRows)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tPLANNED\tACTUAL\tPERCENT\tDELTA\tSTATUS\t")
	for _, row := range run.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Category,
			core.FormatQuantity(row.PlannedQuantity),
			core.FormatQuantity(row.ActualQuantity),
			core.FormatPercent(row.Percentage),
			core.FormatQuantity(row.Deviation.Delta),
			row.Deviation.Status,
		)
	}
	return tw.Flush()
}

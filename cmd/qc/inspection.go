package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/checklist"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/rework"
)

func newInspectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspection",
		Aliases: []string{"insp"},
		Short:   "Inspection management commands",
	}

	cmd.AddCommand(newInspectionCreateCmd())
	cmd.AddCommand(newInspectionRecordCmd())
	cmd.AddCommand(newInspectionAssignCmd())
	cmd.AddCommand(newInspectionShowCmd())
	cmd.AddCommand(newInspectionListCmd())
	return cmd
}

func newInspectionCreateCmd() *cobra.Command {
	var (
		configPath   string
		orderID      string
		stage        string
		inspectorID  string
		requirements []string
		items        []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an inspection for a production order stage",
		Long: `Opens a PENDING inspection with the stage checklist template.

Extra or overriding checkpoints are given as --item "ID|description|expected".
Without --requirement the order customer's registered requirements are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseItems(items)
			if err != nil {
				return err
			}
			opts := inspection.CreateOpts{
				ProductionOrderID: orderID,
				Stage:             models.Stage(strings.ToUpper(stage)),
				InspectorID:       inspectorID,
				ChecklistItems:    parsed,
			}
			if cmd.Flags().Changed("requirement") {
				opts.CustomerRequirements = requirements
			}
			return runInspectionCreate(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringVar(&orderID, "order", "", "production order id (required)")
	cmd.Flags().StringVar(&stage, "stage", "", "production stage (required)")
	cmd.Flags().StringVar(&inspectorID, "inspector", "", "inspector to assign")
	cmd.Flags().StringArrayVar(&requirements, "requirement", nil, "customer requirement (repeatable)")
	cmd.Flags().StringArrayVar(&items, "item", nil, `checkpoint "ID|description|expected" (repeatable)`)
	cmd.MarkFlagRequired("order")
	cmd.MarkFlagRequired("stage")
	return cmd
}

func parseItems(raw []string) ([]checklist.Item, error) {
	var out []checklist.Item
	for _, r := range raw {
		parts := strings.SplitN(r, "|", 3)
		if strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid --item %q: checkpoint id is required", r)
		}
		it := checklist.Item{CheckpointID: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			it.Description = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			it.ExpectedValue = strings.TrimSpace(parts[2])
		}
		out = append(out, it)
	}
	return out, nil
}

func runInspectionCreate(cmd *cobra.Command, configPath string, opts inspection.CreateOpts) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	insp, err := a.inspections.Create(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created inspection %s (%s)\n", insp.InspectionNumber, insp.ID)
	fmt.Fprintf(out, "Stage: %s, checkpoints: %d\n", insp.Stage, len(insp.ChecklistItems))
	if insp.InspectorID != nil {
		fmt.Fprintf(out, "Inspector: %s\n", *insp.InspectorID)
	}
	return nil
}

func newInspectionRecordCmd() *cobra.Command {
	var (
		configPath string
		results    []string
		photos     []string
		remarks    string
	)

	cmd := &cobra.Command{
		Use:   "record <id>",
		Short: "Record checkpoint results",
		Long: `Records checkpoint results given as --result "ID=STATUS[:actual value]".

STATUS is PASS, FAIL, NA or PENDING. The inspection is scored once no
checkpoint is left PENDING; failing outcomes raise a rework job card.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseResults(results)
			if err != nil {
				return err
			}
			opts := inspection.RecordOpts{Results: parsed, Photos: photos}
			if cmd.Flags().Changed("remarks") {
				opts.Remarks = &remarks
			}
			return runInspectionRecord(cmd, configPath, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringArrayVar(&results, "result", nil, `checkpoint result "ID=STATUS[:actual]" (repeatable)`)
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "photo reference (repeatable)")
	cmd.Flags().StringVar(&remarks, "remarks", "", "inspection remarks")
	cmd.MarkFlagRequired("result")
	return cmd
}

func parseResults(raw []string) ([]inspection.Result, error) {
	var out []inspection.Result
	for _, r := range raw {
		id, rest, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid --result %q: want ID=STATUS[:actual]", r)
		}
		status, actual, _ := strings.Cut(rest, ":")
		out = append(out, inspection.Result{
			CheckpointID: strings.TrimSpace(id),
			Status:       models.ItemStatus(strings.ToUpper(strings.TrimSpace(status))),
			ActualValue:  strings.TrimSpace(actual),
		})
	}
	return out, nil
}

func runInspectionRecord(cmd *cobra.Command, configPath, id string, opts inspection.RecordOpts) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	insp, err := a.inspections.RecordResults(cmd.Context(), id, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if insp.Status == models.InspectionPending {
		fmt.Fprintf(out, "Recorded %d results on %s; checkpoints still pending\n", len(opts.Results), insp.InspectionNumber)
		return nil
	}
	fmt.Fprintf(out, "Inspection %s: %s (score %s)\n", insp.InspectionNumber, insp.Status, formatScore(insp.OverallScore))
	if insp.ReworkJobCardID != nil {
		card, err := rework.Get(cmd.Context(), a.db, *insp.ReworkJobCardID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Rework job card %s raised: %s hours estimated\n", card.ReworkNumber, card.EstimatedHours.StringFixed(1))
	}
	return nil
}

func newInspectionAssignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assign <id> <inspector>",
		Short: "Assign an inspector to an inspection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectionAssign(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	return cmd
}

func runInspectionAssign(cmd *cobra.Command, configPath, id, inspectorID string) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	insp, err := a.inspections.AssignInspector(cmd.Context(), id, inspectorID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s\n", inspectorID, insp.InspectionNumber)
	return nil
}

func newInspectionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show inspection details",
		Long:  "Displays an inspection with its checklist and any rework job card.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectionShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	return cmd
}

func runInspectionShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	insp, err := inspection.Get(cmd.Context(), gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Inspection:   %s (%s)\n", insp.InspectionNumber, insp.ID)
	fmt.Fprintf(out, "Order:        %s\n", insp.ProductionOrderID)
	fmt.Fprintf(out, "Stage:        %s\n", insp.Stage)
	fmt.Fprintf(out, "Status:       %s\n", insp.Status)
	fmt.Fprintf(out, "Score:        %s\n", formatScore(insp.OverallScore))
	fmt.Fprintf(out, "Inspector:    %s\n", orDash(insp.InspectorID))
	fmt.Fprintf(out, "Inspected:    %s\n", formatTime(insp.InspectionDate))
	fmt.Fprintf(out, "Requirements: %s\n", joinOrDash(insp.CustomerRequirements))
	if insp.Remarks != "" {
		fmt.Fprintf(out, "Remarks:      %s\n", insp.Remarks)
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECKPOINT\tDESCRIPTION\tEXPECTED\tACTUAL\tSTATUS")
	for _, it := range insp.ChecklistItems {
		actual := it.ActualValue
		if actual == "" {
			actual = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			it.CheckpointID, truncate(it.Description, 40), truncate(it.ExpectedValue, 24), truncate(actual, 24), it.Status)
	}
	w.Flush()

	if insp.ReworkJobCardID != nil {
		card, err := rework.Get(cmd.Context(), gormDB, *insp.ReworkJobCardID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRework %s (%s, %s hours)\n", card.ReworkNumber, card.Status, card.EstimatedHours.StringFixed(1))
		fmt.Fprintln(out, card.Instructions)
	}
	return nil
}

func newInspectionListCmd() *cobra.Command {
	var (
		configPath string
		filters    inspection.ListFilters
		stage      string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspections",
		Long:  "Lists inspections with optional filters, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters.Stage = models.Stage(strings.ToUpper(stage))
			filters.Status = models.InspectionStatus(strings.ToUpper(status))
			return runInspectionList(cmd, configPath, filters)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringVar(&filters.ProductionOrderID, "order", "", "filter by production order")
	cmd.Flags().StringVar(&stage, "stage", "", "filter by stage")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.InspectorID, "inspector", "", "filter by inspector")
	cmd.Flags().StringVar(&filters.BranchID, "branch", "", "filter by branch")
	cmd.Flags().IntVar(&filters.Limit, "limit", 50, "maximum rows")
	return cmd
}

func runInspectionList(cmd *cobra.Command, configPath string, filters inspection.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := inspection.NewService(inspection.Options{DB: gormDB}).List(cmd.Context(), filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No inspections found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tID\tORDER\tSTAGE\tSTATUS\tSCORE\tINSPECTOR\tCREATED")
	for _, insp := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			insp.InspectionNumber, insp.ID, insp.ProductionOrderID, insp.Stage, insp.Status,
			formatScore(insp.OverallScore), orDash(insp.InspectorID), insp.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

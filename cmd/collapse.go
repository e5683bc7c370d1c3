package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-collapse/internal/collapse"
	"github.com/kozaktomas/face-collapse/internal/config"
	"github.com/kozaktomas/face-collapse/internal/scene"
)

var collapseCmd = &cobra.Command{
	Use:   "collapse <scene>",
	Short: "Remove coincident faces from a scene",
	Long: `Remove every face whose vertices occupy the same world space positions as
another face's vertices. By default all faces of such a group are deleted,
which removes the inner faces left between duplicated objects. Use --keep-one
to keep a single face of every group instead.

The scene is an OBJ file or a YAML manifest. Modified OBJ files are rewritten
in place; vertices are never removed.

Example:
  face-collapse collapse model.obj
  face-collapse collapse scene.yaml --only "Wall*" --backup`,
	Args: cobra.ExactArgs(1),
	RunE: runCollapse,
}

func init() {
	rootCmd.AddCommand(collapseCmd)

	collapseCmd.Flags().Bool("dry-run", false, "Preview changes without writing any file")
	collapseCmd.Flags().Bool("keep-one", false, "Keep one face of every coincident group")
	collapseCmd.Flags().Bool("backup", false, "Keep a .bak copy of every rewritten OBJ file")
	collapseCmd.Flags().StringSlice("only", nil, "Only scan objects matching these names (glob, case and accent insensitive)")
	collapseCmd.Flags().String("report", "", "Write a JSON report of the run to this file")
	collapseCmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

// notifier prints user notifications, failures in red and everything else in green.
func notifier(out io.Writer) func(string) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	return func(message string) {
		if strings.HasPrefix(message, "failed") {
			fmt.Fprintln(out, red(message))
			return
		}
		fmt.Fprintln(out, green(message))
	}
}

func runCollapse(cmd *cobra.Command, args []string) error {
	scenePath := args[0]

	cfg := config.Load()

	dryRun := mustGetBool(cmd, "dry-run")
	backup := mustGetBool(cmd, "backup") || cfg.Collapse.Backup
	only := mustGetStringSlice(cmd, "only")
	reportPath := mustGetString(cmd, "report")
	showProgress := cfg.Output.Progress && !mustGetBool(cmd, "quiet")

	policy, err := collapse.ParsePolicy(cfg.Collapse.Policy)
	if err != nil {
		return fmt.Errorf("invalid COLLAPSE_POLICY: %w", err)
	}
	if mustGetBool(cmd, "keep-one") {
		policy = collapse.PolicyKeepOne
	}

	out := cmd.OutOrStdout()
	s, err := scene.Load(scenePath, scene.Options{
		DryRun: dryRun,
		Backup: backup,
		Only:   scene.NameFilter(only),
		Notify: notifier(out),
	})
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}

	fmt.Fprintf(out, "Scene: %s\n", scenePath)
	if dryRun {
		fmt.Fprintln(out, "Mode: DRY RUN (no files will be written)")
	}
	if policy == collapse.PolicyKeepOne {
		fmt.Fprintln(out, "Policy: keep one face per group")
	}

	opts := collapse.Options{
		Policy: policy,
		Logger: diagnostics(cmd),
	}
	if showProgress {
		opts.Progress = cmd.ErrOrStderr()
	}

	result, err := collapse.New(s).Run(opts)
	if err != nil {
		return fmt.Errorf("collapse failed: %w", err)
	}

	if verbose {
		printGroups(out, result.Groups)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors: %d\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", err)
		}
	}

	if reportPath == "" && cfg.Output.ReportDir != "" {
		reportPath = collapse.ReportPath(cfg.Output.ReportDir, result)
	}
	if reportPath != "" {
		if err := collapse.NewReport(scenePath, result).Write(reportPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report: %s\n", reportPath)
	}

	return nil
}

func printGroups(out io.Writer, groups []collapse.Group) {
	fmt.Fprintf(out, "Coincidence groups: %d\n", len(groups))
	for _, g := range groups {
		members := make([]string, len(g.Members))
		for i, m := range g.Members {
			members[i] = m.String()
		}
		fmt.Fprintf(out, "  [%d] %s\n", g.Count, strings.Join(members, ", "))
		fmt.Fprintf(out, "      key: %s\n", g.Key)
	}
}

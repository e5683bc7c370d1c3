package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-collapse/internal/collapse"
	"github.com/kozaktomas/face-collapse/internal/scene"
)

var groupsCmd = &cobra.Command{
	Use:   "groups <scene>",
	Short: "List groups of coincident faces without changing anything",
	Long: `Scan a scene and list every group of faces that share the same world space
vertex positions. Nothing is deleted and no file is written.

Example:
  face-collapse groups scene.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)

	groupsCmd.Flags().StringSlice("only", nil, "Only scan objects matching these names (glob, case and accent insensitive)")
}

func runGroups(cmd *cobra.Command, args []string) error {
	scenePath := args[0]
	only := mustGetStringSlice(cmd, "only")

	out := cmd.OutOrStdout()
	s, err := scene.Load(scenePath, scene.Options{
		DryRun: true,
		Only:   scene.NameFilter(only),
		Notify: notifier(out),
	})
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}

	scan, err := collapse.New(s).Scan(collapse.Options{Logger: diagnostics(cmd)})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(out, "Scanned %d faces in %d mesh objects\n", scan.Faces(), scan.MeshObjects())
	if len(scan.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d non-mesh objects\n", len(scan.Skipped))
	}
	printGroups(out, scan.Groups())
	return nil
}

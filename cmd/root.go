package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "face-collapse",
	Short: "A CLI tool for removing coincident faces from 3D meshes",
	Long: `Face Collapse finds polygonal faces that occupy exactly the same place
in world space as another face, typically left behind when duplicated
geometry overlaps, and removes them from the meshes.

A scene is either a single Wavefront OBJ file or a YAML manifest that places
OBJ meshes in world space.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostics about every face group")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// diagnostics returns the logger for --verbose output, or nil when disabled
func diagnostics(cmd *cobra.Command) *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(cmd.ErrOrStderr(), "", 0)
}

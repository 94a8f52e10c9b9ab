package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand creates the admin command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "records-admin",
		Short: "Records Admin CLI - content type and storage inspection",
		Long: `Records Admin Command Line Interface

Inspects content type definitions, reports the storage representation the
current environment selects, and converts field maps into stored documents.

Configuration is read from the environment (see config.WithEnv) and from a
.env file in the current directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("schema-dir", "", "directory of content type definitions (default: $SCHEMA_DIR)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewTypesCommand())
	rootCmd.AddCommand(NewFieldsCommand())
	rootCmd.AddCommand(NewStrategyCommand())
	rootCmd.AddCommand(NewConvertCommand())

	return rootCmd
}

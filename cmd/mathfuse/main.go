package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sha1n/mathfuse/internal/app"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "mathfuse"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Math-aware forum retrieval and evaluation",
		Long:    "Index question/answer archives with embedded formulas, fuse post and formula rankings and evaluate them against relevance judgments",
		Version: version,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	rootCmd.AddCommand(
		newIndexCommand(),
		newRunCommand(),
		newEvalCommand(),
		newTopicsCommand(),
		newServeCommand(version),
	)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// signalContext is cancelled on interrupt so a batch can be aborted.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <posts.xml>",
		Short: "Build the post and/or formula index from a post archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return app.RunIndex(ctx, app.DefaultRunParams(), cmd.Flags(), app.IndexArgsFromFlags(args[0], cmd.Flags()))
		},
	}
	app.RegisterIndexFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive(app.MathFlag, app.MathPostFlag)
	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <topics.xml> <qrels>",
		Short: "Evaluate retrieval experiments over a topic file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return app.RunExperiments(ctx, app.DefaultRunParams(), cmd.Flags(), args[0], args[1])
		},
	}
	app.RegisterRunFlags(cmd.Flags())
	return cmd
}

func newEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <run.res[.gz]> <qrels>",
		Short: "Evaluate an existing TREC run file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunEval(cmd.Context(), app.DefaultRunParams(), cmd.Flags(), args[0], args[1])
		},
	}
	app.RegisterEvalFlags(cmd.Flags())
	return cmd
}

func newTopicsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics <topics.xml> [qrels]",
		Short: "Print normalized topics and judgment counts",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qrelsPath := ""
			if len(args) == 2 {
				qrelsPath = args[1]
			}
			return app.RunTopics(app.DefaultRunParams(), cmd.Flags(), args[0], qrelsPath)
		},
	}
	app.RegisterEvalFlags(cmd.Flags())
	return cmd
}

func newServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over the built indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return app.RunWithDeps(ctx, app.DefaultRunParams(), cmd.Flags(), version)
		},
	}
	app.RegisterServeFlags(cmd.Flags())
	return cmd
}

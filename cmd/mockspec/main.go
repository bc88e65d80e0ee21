package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Zachacious/go-mockspec/mockspec"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// These variables are set at build time by the Makefile's ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
	quiet   bool
}

func (o *rootOptions) logger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "mockspec"})
	switch {
	case o.quiet:
		logger.SetLevel(log.ErrorLevel)
	case o.verbose:
		logger.SetLevel(log.DebugLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "mockspec",
		Short: "mockspec generates Pester mock scaffolding from PowerShell sources.",
		Long: `mockspec statically analyzes the functions of a PowerShell project, resolves
every command they invoke together with its named, positional, splatted and
pipeline parameter bindings, and writes Pester tests that mock each call.
It is configured through a .mockspec.yaml file at the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every unresolved invocation")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newGenerateCmd(opts), newListCmd(opts), newVersionCmd())
	return rootCmd
}

type generateOptions struct {
	functions   []string
	output      string
	format      string
	signatures  []string
	openapi     []string
	policy      string
	splatPolicy string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "Write Pester scaffolding for the functions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath := args[0]
			logger := root.logger(cmd.ErrOrStderr())
			logger.Info("Starting analysis", "project", projectPath)

			g := mockspec.New(projectPath).
				WithLogger(logger).
				WithSignatures(opts.signatures...).
				WithOpenAPI(opts.openapi...).
				WithFormat(opts.format).
				WithBatchPolicy(opts.policy).
				WithSplatPolicy(opts.splatPolicy)

			var buf bytes.Buffer
			genErr := g.Generate(cmd.Context(), &buf, opts.functions...)
			if suite := g.Suite(); suite != nil && !root.quiet {
				renderReport(cmd.ErrOrStderr(), suite)
			}
			if genErr != nil {
				return fmt.Errorf("generating scaffolding: %w", genErr)
			}

			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(opts.output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("writing output file: %w", err)
			}
			logger.Info("Wrote scaffolding", "path", opts.output)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&opts.functions, "function", "f", nil, "Function to generate tests for (repeatable; default all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: pester or yaml")
	cmd.Flags().StringArrayVar(&opts.signatures, "signatures", nil, "YAML signature catalog (repeatable)")
	cmd.Flags().StringArrayVar(&opts.openapi, "openapi", nil, "OpenAPI document of a generated cmdlet module (repeatable)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Batch policy: collect or abort")
	cmd.Flags().StringVar(&opts.splatPolicy, "splat", "", "Splat source policy: nearest or strict")
	return cmd
}

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List the functions defined in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := mockspec.New(args[0]).WithLogger(root.logger(cmd.ErrOrStderr()))
			names, err := g.Functions(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing functions: %w", err)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mockspec",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mockspec version %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built at: %s\n", date)
		},
	}
}

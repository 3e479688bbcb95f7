// Command wamc compiles a file of clauses into WAM bytecode text.
package main

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunokim/prolog-wam/wam/compiler"
)

var (
	inputFilename  string
	outputFilename string
	verbose        bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wamc",
		Short:        "Compile Prolog clauses into WAM code",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			out := cmd.OutOrStdout()
			if outputFilename != "" && outputFilename != "-" {
				f, err := os.Create(outputFilename)
				if err != nil {
					log.Fatalf("create output: %v", err)
				}
				defer f.Close()
				out = f
			}
			return compile(inputFilename, out, logger)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&inputFilename, "input", "i", "", "Input file (required)")
	flags.StringVarP(&outputFilename, "output", "o", "", "Output file, or stdout if empty")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log compiler debug messages")
	cmd.MarkFlagRequired("input")
	return cmd
}

// compile writes the bytecode of the clauses in filename to w.
func compile(filename string, w io.Writer, logger *slog.Logger) error {
	c := &compiler.Compiler{Logger: logger}
	p, err := c.CompileFile(filename)
	if err != nil {
		return err
	}
	_, err = p.WriteTo(w)
	return err
}

package commands

import (
	"io"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ...commands.Version=".
var Version = "0.1.0"

type rootOptions struct {
	cfgFile string
	verbose bool
	noColor bool
}

// NewRootCmd builds the command tree. Output goes to out and errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pdf-pages",
		Short: "Split a PDF into per-page text and image records",
		Long: `pdf-pages extracts every embedded image of a PDF to disk, reads the
layout-aware text of each page, and writes one record per page holding the
page number, its text and the paths of its images.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

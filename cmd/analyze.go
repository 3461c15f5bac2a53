package cmd

import (
	"fmt"
	"io"

	"repo-scan/analysis"
	"repo-scan/render"
	"repo-scan/submitter"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repository-url]",
	Short: "submit one repository to the analysis API and print the result",
	Long: `analyze posts the repository URL to the analysis API and prints the
rendered HTML fragment. With --table the result is printed as a table instead.

The URL is sent as given, an empty argument included.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var tableFlag bool

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	endpoint, _ := cmd.Flags().GetString("endpoint")
	if endpoint == "" {
		endpoint = cfg.Widget.AnalyzeURL
	}

	out := cmd.OutOrStdout()
	display := render.NewDisplay()

	var renderer submitter.Renderer = &render.Renderer{Display: display}
	if tableFlag {
		renderer = &tableRenderer{out: out}
	}

	sub := &submitter.Submitter{
		API:      submitter.NewAnalyzerClient(endpoint, cfg.Widget.Timeout),
		Renderer: renderer,
		Log:      logger,
	}
	sub.Submit(cmd.Context(), args[0])
	sub.Wait()

	if !tableFlag {
		fmt.Fprintln(out, display.Content())
	}
	return nil
}

// tableRenderer prints a response to a terminal instead of a display region.
type tableRenderer struct {
	out io.Writer
}

func (r *tableRenderer) Render(resp *analysis.Response) error {
	switch resp.Kind() {
	case analysis.KindSummary:
		fmt.Fprintf(r.out, "%s %s\n",
			color.HiMagentaString("Total vulnerability percentage for the entire project:"),
			percentageColor(*resp.TotalVulnerabilityPercentage)("%.2f%%", *resp.TotalVulnerabilityPercentage))

		if resp.Dependencies == nil {
			return nil
		}
		table := tablewriter.NewTable(r.out)
		table.Header([]string{"Package", "Vulnerability"})
		for _, dep := range resp.Dependencies {
			if err := table.Append([]string{dep.PackageName, fmt.Sprintf("%.2f%%", dep.VulnerabilityPercentage)}); err != nil {
				return err
			}
		}
		return table.Render()
	case analysis.KindMessage:
		fmt.Fprintln(r.out, color.YellowString(*resp.Message))
	}
	return nil
}

func percentageColor(v float64) func(format string, a ...interface{}) string {
	switch {
	case v >= 50:
		return color.RedString
	case v > 0:
		return color.YellowString
	default:
		return color.GreenString
	}
}

func init() {
	analyzeCmd.Flags().BoolVarP(&tableFlag, "table", "t", false, "print the result as a table")
	analyzeCmd.Flags().StringP("endpoint", "e", "", "analysis API endpoint (defaults to the configured analyze_url)")

	rootCmd.AddCommand(analyzeCmd)
}

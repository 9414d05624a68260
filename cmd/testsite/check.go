package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/testsite/testsite/auth"
)

func getTable(headers []string, out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.SetAutoFormatHeaders(false)
	return table
}

func checkPaths(ctx context.Context, checker *auth.Checker, paths []string, out io.Writer) {
	table := getTable([]string{"PATH", "PROTECTED", "AUTHENTICATED", "REASON"}, out)
	protected := 0
	for _, path := range paths {
		decision := checker.Evaluate(ctx, path)
		if decision.Protected {
			protected++
		}
		table.Append([]string{
			fmt.Sprintf("%q", path), fmt.Sprintf("%v", decision.Protected), fmt.Sprintf("%v", decision.Authenticated()), decision.Reason,
		})
	}
	table.Render()
	fmt.Fprintf(out, "%s paths checked, %s protected\n", humanize.Comma(int64(len(paths))), humanize.Comma(int64(protected)))
}

func CheckCommand(config *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "check PATH...",
		Short: "Run the page authentication check against paths.",
		Args:  cobra.MinimumNArgs(1),
		PreRun: func(c *cobra.Command, _ []string) {
			config.BindPFlag("marker", c.Flags().Lookup("marker"))
		},
		Run: func(cmd *cobra.Command, args []string) {
			checker := auth.NewChecker(
				auth.WithMarker(config.GetString("marker")),
				auth.WithNotifier(auth.ConsoleNotifier(cmd.OutOrStdout())),
			)
			checkPaths(context.Background(), checker, args, cmd.OutOrStdout())
		},
	}
	c.Flags().String("marker", auth.DefaultMarker, "Path substring identifying protected pages.")
	return c
}

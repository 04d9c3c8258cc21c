package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vpsim/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report [database.sqlite3]",
	Short: "Print an execution recorded with run --record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printReport(cmd, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func printReport(cmd *cobra.Command, dbFile string, w io.Writer) error {
	reader, err := datarecording.NewReader(dbFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(datarecording.ExecTable, datarecording.ExecInfo{})
	reader.MapTable(datarecording.HaltTable, datarecording.HaltEntry{})

	infos, _, err := reader.Query(cmd.Context(), datarecording.ExecTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return err
	}

	for _, r := range infos {
		info := r.(*datarecording.ExecInfo)
		fmt.Fprintf(w, "%-18s %s\n", info.Property+":", info.Value)
	}

	halts, total, err := reader.Query(cmd.Context(), datarecording.HaltTable,
		datarecording.QueryParams{OrderBy: "Seq"})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%d halts\n", total)

	for _, r := range halts {
		h := r.(*datarecording.HaltEntry)
		fmt.Fprintf(w, "  #%d at %d\n", h.Seq, h.Time)
	}

	return nil
}

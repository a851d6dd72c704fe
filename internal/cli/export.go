package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export memories as JSON suitable for import. Filter by chunk with -c.",
		Run:   runExport,
	}

	cmd.Flags().StringP("chunk", "c", "", "Export only this chunk")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	entries, err := e.Export(cmd.Context(), chunkName)
	if err != nil {
		exitErr("export", err)
	}
	emitJSON(entries)
}

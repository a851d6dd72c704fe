package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long: "Import memories from JSON on stdin, in the format produced by export. " +
			"Every entry is re-encoded and re-relaxed; nothing is trusted from the file.",
		Run: runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var entries []engine.ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		exitErr("parse json", err)
	}

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	report, err := e.Import(cmd.Context(), entries)
	if err != nil {
		exitErr("import", err)
	}

	if formatFlag == "text" {
		fmt.Printf("imported %d of %d (%d duplicates, %d unstored, %d errors)\n",
			report.Created, report.Total, report.Duplicates, report.Unstored, report.Errors)
		return
	}
	emitJSON(report)
}

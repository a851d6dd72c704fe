package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stability <text>",
		Short: "Score how firmly a memory is settled",
		Long: "Re-derives the memory from its text and from its stored attractor and " +
			"reports how well both reproduce what is on disk, combined with its recall history.",
		Args: cobra.MinimumNArgs(1),
		Run:  runStability,
	}

	cmd.Flags().StringP("chunk", "c", "", "Look only in this chunk")

	RootCmd.AddCommand(cmd)
}

func runStability(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	report, err := e.Stability(cmd.Context(), strings.Join(args, " "), chunkName)
	if err != nil {
		exitErr("stability", err)
	}

	if formatFlag == "text" {
		fmt.Printf("%s (%s, %s)\n", truncate(report.Text, 60), report.Chunk, report.State)
		fmt.Printf("stability   %.4f\n", report.Stability)
		fmt.Printf("persistence %.4f\n", report.Persistence)
		fmt.Printf("compression %.4f\n", report.Compression)
		fmt.Printf("temperature %.4f (%s, %d hits)\n", report.Temperature, report.Tier, report.HitCount)
		return
	}
	emitJSON(report)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories",
		Run:   runList,
	}

	cmd.Flags().StringP("chunk", "c", "", "List only this chunk")
	cmd.Flags().Bool("keys-only", false, "Only output chunk/key pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	entries, err := e.List(cmd.Context(), chunkName)
	if err != nil {
		exitErr("list", err)
	}

	if keysOnly {
		for _, entry := range entries {
			fmt.Printf("%s/%s\n", entry.Chunk, entry.Key)
		}
		return
	}

	if formatFlag == "text" {
		if len(entries) == 0 {
			fmt.Println("no memories")
			return
		}
		for _, entry := range entries {
			fmt.Printf("%s  %-12s %-9s %4d hits  %.4f %-4s  %s\n",
				entry.CreatedAt.Format("2006-01-02 15:04"), entry.Chunk, entry.State,
				entry.HitCount, entry.Temperature, entry.Tier,
				truncate(entry.Text, 50))
		}
		return
	}
	emitJSON(entries)
}

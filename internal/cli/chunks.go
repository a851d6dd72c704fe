package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "List chunks with entry counts",
		Run:   runChunks,
	}

	RootCmd.AddCommand(cmd)
}

func runChunks(cmd *cobra.Command, args []string) {
	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	infos, err := e.ChunkStats(cmd.Context())
	if err != nil {
		exitErr("chunks", err)
	}

	if formatFlag == "text" {
		if len(infos) == 0 {
			fmt.Println("no chunks")
			return
		}
		fmt.Printf("%-16s %8s %8s  %s\n", "chunk", "entries", "stores", "last accessed")
		for _, info := range infos {
			last := "never"
			if !info.LastAccessed.IsZero() {
				last = info.LastAccessed.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-16s %8d %8d  %s\n", info.Name, info.Entries, info.StoreCount, last)
		}
		return
	}
	emitJSON(infos)
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/dynamics"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show global statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	overview, err := e.GlobalStats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	if formatFlag == "text" {
		fmt.Printf("root      %s\n", overview.Store.Root)
		fmt.Printf("entries   %d in %d chunks (%d bytes on disk)\n",
			overview.Store.Entries, len(overview.Store.Chunks), overview.Store.TotalBytes)

		states := make([]string, 0, len(overview.Store.States))
		for state := range overview.Store.States {
			states = append(states, state)
		}
		sort.Strings(states)
		for _, state := range states {
			fmt.Printf("  %-22s %d\n", state, overview.Store.States[state])
		}

		fmt.Printf("tiers     hot %d  warm %d  cold %d\n",
			overview.Tiers["hot"], overview.Tiers["warm"], overview.Tiers["cold"])

		fmt.Print("rotations ")
		for i, angle := range dynamics.Angles {
			if i > 0 {
				fmt.Print("  ")
			}
			fmt.Printf("%d:%d", angle, overview.Rotations[angle])
		}
		fmt.Println()
		return
	}
	emitJSON(overview)
}

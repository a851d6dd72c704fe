package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "temps",
		Short: "Show memory temperatures",
		Long:  "Temperature blends recall frequency with recency decay. Computed on demand, never stored.",
		Run:   runTemps,
	}

	cmd.Flags().StringP("chunk", "c", "", "Only this chunk")
	cmd.Flags().String("tier", "", "Filter by tier: hot, warm, or cold")
	cmd.Flags().String("sort", "temp", "Sort order: temp, hits, or chunk")

	RootCmd.AddCommand(cmd)
}

type tempsReport struct {
	Tiers   map[string]int     `json:"tiers"`
	Entries []engine.ListEntry `json:"entries"`
}

func runTemps(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")
	tier, _ := cmd.Flags().GetString("tier")
	order, _ := cmd.Flags().GetString("sort")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	entries, err := e.List(cmd.Context(), chunkName)
	if err != nil {
		exitErr("temps", err)
	}

	tiers := map[string]int{"hot": 0, "warm": 0, "cold": 0}
	for _, entry := range entries {
		tiers[entry.Tier]++
	}

	if tier != "" {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.Tier == tier {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}

	sort.SliceStable(entries, func(i, j int) bool {
		switch order {
		case "hits":
			return entries[i].HitCount > entries[j].HitCount
		case "chunk":
			if entries[i].Chunk != entries[j].Chunk {
				return entries[i].Chunk < entries[j].Chunk
			}
			return entries[i].Temperature > entries[j].Temperature
		default:
			return entries[i].Temperature > entries[j].Temperature
		}
	})

	if formatFlag == "text" {
		fmt.Printf("hot %d  warm %d  cold %d\n", tiers["hot"], tiers["warm"], tiers["cold"])
		for _, entry := range entries {
			fmt.Printf("%.4f %-4s %4d hits  %-12s %s\n",
				entry.Temperature, entry.Tier, entry.HitCount, entry.Chunk,
				truncate(entry.Text, 50))
		}
		return
	}
	emitJSON(tempsReport{Tiers: tiers, Entries: entries})
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Recall memories by resonance",
		Long:  "Evolve the query to its own attractor and rank stored memories by correlation against it.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().IntP("top-k", "k", 5, "Max matches to return")
	cmd.Flags().StringP("chunk", "c", "", "Search only this chunk")
	cmd.Flags().Float64("temperature-boost", 0, "Add boost*temperature to each similarity before ranking")
	cmd.Flags().Bool("embed", false, "Encode the query through the embedding provider")
	cmd.Flags().Bool("reconstruct", false, "Re-relax each match blended with the query")
	cmd.Flags().Float64("alpha", 0.3, "Reconstruction blend weight toward the query")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	chunkName, _ := cmd.Flags().GetString("chunk")
	boost, _ := cmd.Flags().GetFloat64("temperature-boost")
	useEmbed, _ := cmd.Flags().GetBool("embed")
	reconstruct, _ := cmd.Flags().GetBool("reconstruct")
	alpha, _ := cmd.Flags().GetFloat64("alpha")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	matches, err := e.Recall(cmd.Context(), strings.Join(args, " "), engine.RecallOptions{
		TopK:             topK,
		Chunk:            chunkName,
		TemperatureBoost: boost,
		UseEmbedding:     useEmbed,
		Reconstruct:      reconstruct,
		Alpha:            alpha,
	})
	if err != nil {
		exitErr("recall", err)
	}

	if formatFlag == "text" {
		if len(matches) == 0 {
			fmt.Println("no matches")
			return
		}
		for i, m := range matches {
			fmt.Printf("%2d. %.4f  %-9s %-4s %-12s %s\n",
				i+1, m.Similarity, m.Entry.State, m.Tier, m.Entry.Chunk,
				truncate(m.Entry.Text, 60))
			if m.Reconstruction != nil {
				r := m.Reconstruction
				fmt.Printf("    reconstruction: %s in %d ticks, corr stored %.4f, corr query %.4f (alpha %.2f)\n",
					r.State, r.Ticks, r.CorrStored, r.CorrQuery, r.Alpha)
			}
		}
		return
	}
	emitJSON(matches)
}

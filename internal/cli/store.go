package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [text]",
		Short: "Store a memory",
		Long:  "Encode text, relax it to an attractor, and persist it. Text can be a positional arg or piped via stdin.",
		Run:   runStore,
	}

	cmd.Flags().StringP("chunk", "c", "", "Destination chunk (default: keyword routing)")
	cmd.Flags().Bool("embed", false, "Encode through the embedding provider")
	cmd.Flags().Bool("keep-failed", false, "Persist even when no rotation converges")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")
	useEmbed, _ := cmd.Flags().GetBool("embed")
	keepFailed, _ := cmd.Flags().GetBool("keep-failed")

	// Text comes from the positional args first, then stdin.
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		exitErr("store", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	res, err := e.Store(cmd.Context(), text, engine.StoreOptions{
		Chunk:        chunkName,
		UseEmbedding: useEmbed,
		KeepFailed:   keepFailed,
	})
	if err != nil {
		exitErr("store", err)
	}

	if formatFlag == "text" {
		if res.Stored {
			fmt.Printf("stored %s in %s: %s after %d ticks (rotation %d, attempt %d)\n",
				res.Key[:12], res.Chunk, res.State, res.Ticks, res.Rotation, res.Attempts)
		} else {
			fmt.Printf("not stored: %s after %d attempts (use --keep-failed to persist)\n",
				res.State, res.Attempts)
		}
		return
	}
	emitJSON(res)
}

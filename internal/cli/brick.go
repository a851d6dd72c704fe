package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/tui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "brick <text-or-key>",
		Short: "Inspect a memory's evolution history",
		Long: "Loads the full tick history for a memory, found by its text or its content key. " +
			"Use --tick to render one frame, or --tui for the interactive stepper.",
		Args: cobra.MinimumNArgs(1),
		Run:  runBrick,
	}

	cmd.Flags().StringP("chunk", "c", "", "Look only in this chunk")
	cmd.Flags().IntP("tick", "t", -1, "Render the frame at this tick")
	cmd.Flags().Bool("tui", false, "Open the interactive stepper")

	RootCmd.AddCommand(cmd)
}

type brickReport struct {
	Key            string         `json:"key"`
	Chunk          string         `json:"chunk"`
	Text           string         `json:"text,omitempty"`
	State          dynamics.State `json:"state"`
	Ticks          int            `json:"ticks"`
	Frames         int            `json:"frames"`
	Rotation       int            `json:"rotation"`
	Attempts       int            `json:"attempts"`
	WallTime       float64        `json:"wall_time_seconds"`
	CyclePeriod    int            `json:"cycle_period,omitempty"`
	CycleCells     int            `json:"cycle_cells,omitempty"`
	DivergenceTick *int           `json:"divergence_tick,omitempty"`
	TickFrame      []float64      `json:"tick_frame,omitempty"`
}

func runBrick(cmd *cobra.Command, args []string) {
	chunkName, _ := cmd.Flags().GetString("chunk")
	tick, _ := cmd.Flags().GetInt("tick")
	interactive, _ := cmd.Flags().GetBool("tui")

	e, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	b, foundIn, err := e.LoadBrick(cmd.Context(), strings.Join(args, " "), chunkName)
	if err != nil {
		exitErr("brick", err)
	}

	if interactive {
		if err := tui.Run(b, foundIn); err != nil {
			exitErr("tui", err)
		}
		return
	}

	report := brickReport{
		Key:         b.Meta.Key,
		Chunk:       foundIn,
		Text:        b.Meta.Text,
		State:       b.State,
		Ticks:       b.Ticks,
		Frames:      len(b.History),
		Rotation:    b.Meta.Rotation,
		Attempts:    b.Meta.Attempts,
		WallTime:    b.Meta.WallTime,
		CyclePeriod: b.Meta.CyclePeriod,
		CycleCells:  b.Meta.CycleCells,
	}
	if point, ok := b.DivergencePoint(); ok {
		report.DivergenceTick = &point
	}
	if tick >= 0 {
		f, err := b.FrameAt(tick)
		if err != nil {
			exitErr("brick", err)
		}
		report.TickFrame = f.Cells
	}

	if formatFlag == "text" {
		key := b.Meta.Key
		if len(key) > 12 {
			key = key[:12]
		}
		fmt.Printf("%s  chunk %s  %s\n", key, foundIn, b.State)
		fmt.Printf("ticks %d (%d frames)  rotation %d  attempts %d  wall %.3fs\n",
			b.Ticks, len(b.History), b.Meta.Rotation, b.Meta.Attempts, b.Meta.WallTime)
		if b.Meta.CyclePeriod > 0 {
			fmt.Printf("cycle period %d, %d oscillating cells\n", b.Meta.CyclePeriod, b.Meta.CycleCells)
		}
		if report.DivergenceTick != nil {
			fmt.Printf("divergence at tick %d\n", *report.DivergenceTick)
		}
		if tick >= 0 {
			f, _ := b.FrameAt(tick)
			fmt.Printf("\ntick %d:\n%s", tick, tui.RenderFrame(f))
		}
		return
	}
	emitJSON(report)
}

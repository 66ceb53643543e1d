package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print where each overlay is drawn at a playback time",
	Long: `Lay out the overlays visible at --at seconds for a preview --viewport
pixels wide and print the result as JSON. Image sizes are fetched first so
heights are known where possible.

Examples:
  overlay-editor preview --at 3
  overlay-editor preview --at 2.5 --viewport 960 --video clip.mp4`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Float64("at", 0, "Playback time in seconds")
	previewCmd.Flags().Float64("viewport", 960, "Rendered preview width in pixels")
	previewCmd.Flags().String("video", "", "Video file that sets the native frame")
}

func runPreview(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetFloat64("at")
	viewport, _ := cmd.Flags().GetFloat64("viewport")
	video, _ := cmd.Flags().GetString("video")
	if viewport <= 0 {
		return fmt.Errorf("invalid viewport %v: must be positive", viewport)
	}

	ctx := context.Background()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	if video != "" {
		if _, err := sess.shell.LoadVideo(ctx, video); err != nil {
			return fmt.Errorf("failed to load video: %w", err)
		}
	}
	sess.images.Wait()

	frame := sess.shell.Preview(at, viewport)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(frame)
}

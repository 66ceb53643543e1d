package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/overlay-editor/internal/app"
	"github.com/heimdex/overlay-editor/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the overlay list as a delimited file or an EDL",
	Long: `Write the stored overlay list, sorted by start time. Without --output the
result goes to standard output.

Examples:
  overlay-editor export
  overlay-editor export -o overlays.csv
  overlay-editor export --format edl --fps 25 -o overlays.edl`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file path")
	exportCmd.Flags().StringP("format", "f", export.FormatCSV, "Output format (csv, edl)")
	exportCmd.Flags().Float64("fps", export.DefaultFrameRate, "Frame rate for EDL timecodes")
}

func runExport(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	fps, _ := cmd.Flags().GetFloat64("fps")

	format = strings.ToLower(format)
	if format != export.FormatCSV && format != export.FormatEDL {
		return fmt.Errorf("invalid format %q: supported formats are csv, edl", format)
	}

	ctx := context.Background()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	if outputPath == "" {
		return render(sess.shell, cmd.OutOrStdout(), format, export.DefaultFileName, fps)
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	path, size, err := export.WriteFile(filepath.Dir(abs), filepath.Base(abs), func(w io.Writer) error {
		return render(sess.shell, w, format, title, fps)
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d overlays to %s (%s)\n",
		sess.shell.Session().Len(), path, humanize.Bytes(uint64(size)))
	return nil
}

func render(shell *app.Shell, w io.Writer, format, title string, fps float64) error {
	if format == export.FormatEDL {
		_, err := shell.ExportEDL(w, title, fps)
		return err
	}
	return shell.Export(w)
}

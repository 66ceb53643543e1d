package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the overlay list with a delimited file",
	Long: `Read an overlay file and make it the stored overlay list. A malformed
file is rejected and the stored list is left untouched.

Examples:
  overlay-editor import overlays.csv
  overlay-editor import - < overlays.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open overlay file: %w", err)
		}
		defer f.Close()
		in = f
	}

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	items, err := sess.shell.Import(ctx, in)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if !sess.shell.StoreAvailable() {
		return fmt.Errorf("import parsed %d overlays but the store is unavailable", len(items))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s overlays\n", humanize.Comma(int64(len(items))))
	return nil
}

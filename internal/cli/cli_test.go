package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/overlay-editor/internal/config"
	"github.com/heimdex/overlay-editor/internal/csvcodec"
)

const sampleCSV = csvcodec.Header + `
b.png,100,200,400,5,3,transparente,lateral
a.png,50,10,300,2,8,opacidad,difuminado
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvImageTimeout, "1")
	return dir
}

func TestImportThenExport(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(src, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "import", src, "--data-dir", dir)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "Imported 2 overlays") {
		t.Errorf("import output = %q", out)
	}

	dst := filepath.Join(dir, "out.csv")
	if _, err := execute(t, "export", "-o", dst, "--data-dir", dir); err != nil {
		t.Fatalf("export error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	want := csvcodec.Header + "\n" +
		"a.png,50,10,300,2,8,opacidad,difuminado\n" +
		"b.png,100,200,400,5,3,transparente,lateral"
	if string(data) != want {
		t.Errorf("export =\n%s\nwant\n%s", data, want)
	}
}

func TestImportMalformed(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "bad.csv")
	os.WriteFile(src, []byte(csvcodec.Header+"\na.png,1,2"), 0o644)

	if _, err := execute(t, "import", src, "--data-dir", dir); err == nil {
		t.Fatal("import of a malformed file should fail")
	}
}

func TestExportInvalidFormat(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "export", "--format", "xml", "--data-dir", dir)
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("error = %v, want invalid format", err)
	}
	// Flags keep their values between executions of the same command tree.
	exportCmd.Flags().Set("format", "csv")
}

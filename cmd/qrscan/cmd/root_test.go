package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes a fresh command tree inside an empty working directory so
// no stray qrscan.yaml is picked up.
func runCLI(t *testing.T, stdin []byte, args ...string) cliResult {
	t.Helper()
	root := NewRootCommand(viper.New())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if stdin != nil {
		root.SetIn(bytes.NewReader(stdin))
	}
	root.SetArgs(args)
	err := root.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// isolate points history at a temporary file and runs in a temporary directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("QRSCAN_HISTORY_BACKEND", "file")
	t.Setenv("QRSCAN_HISTORY_PATH", filepath.Join(dir, "history.json"))
	return dir
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	res := runCLI(t, nil, "--help")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Available Commands:")
	assert.Contains(t, res.stdout, "Usage:")
	assert.Contains(t, res.stdout, "qrscan decodes QR codes")
}

func TestRootCommandSubcommands(t *testing.T) {
	root := NewRootCommand(viper.New())
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"scan", "batch", "serve", "history", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	res := runCLI(t, nil, "--no-such-flag")
	assert.Error(t, res.err)
}

func TestVersionCommand(t *testing.T) {
	res := runCLI(t, nil, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "qrscan dev")
}

func TestInvalidConfigFile(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "bad.yaml", []byte("normalize:\n  target_width: -1\n"))
	res := runCLI(t, nil, "--config", path, "history", "list")
	assert.ErrorContains(t, res.err, "error loading configuration")
}

func TestScanCommandFindsCode(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "code.png", testutil.GenerateQRPNG(t, testutil.ExampleURL, 500))

	res := runCLI(t, nil, "scan", path)
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "Scanned from Image! "+testutil.ExampleURL+"\n", res.stdout)

	list := runCLI(t, nil, "history", "list", "--format", "json")
	require.NoError(t, list.err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(list.stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, testutil.ExampleURL, entries[0].Data)
	assert.Equal(t, "qr", entries[0].Type)
}

func TestScanCommandJSON(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "wifi.jpg", testutil.GenerateQRJPEG(t, "WIFI:S:home;T:WPA;P:secret;;", 500))

	res := runCLI(t, nil, "scan", path, "--format", "json", "--no-history")
	require.NoError(t, res.err, res.stderr)

	var out scan.Outcome
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, scan.StateSucceeded, out.Status)
	assert.Equal(t, "wifi", out.ContentKind)
	assert.NotEmpty(t, out.TaskID)
	assert.Len(t, out.Stages, 3)
	assert.Equal(t, 0, historyLen(t), "--no-history records nothing")
}

func historyLen(t *testing.T) int {
	t.Helper()
	res := runCLI(t, nil, "history", "list", "--format", "json")
	require.NoError(t, res.err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	return len(entries)
}

func TestScanCommandNotFound(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "wall.png", testutil.EncodePNG(t, testutil.CreateTestImage(640, 480, testutil.Gray)))

	res := runCLI(t, nil, "scan", path)
	require.NoError(t, res.err)
	assert.Equal(t, "No QR Code Found Could not detect a QR code in this image.\n", res.stdout)
	assert.Equal(t, 0, historyLen(t))
}

func TestScanCommandCorruptImage(t *testing.T) {
	dir := isolate(t)
	data := testutil.Truncate(testutil.GenerateQRJPEG(t, testutil.ExampleURL, 400), 0.4)
	path := testutil.WriteFile(t, dir, "broken.jpg", data)

	res := runCLI(t, nil, "scan", path)
	require.ErrorIs(t, res.err, errScanUnsuccessful)
	assert.True(t, strings.HasPrefix(res.stdout, "Error Failed to scan image."), res.stdout)
}

func TestScanCommandFromStdin(t *testing.T) {
	isolate(t)
	res := runCLI(t, testutil.GenerateQRPNG(t, "from stdin", 300), "scan", "-", "--no-history")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "Scanned from Image! from stdin\n", res.stdout)
}

func TestScanCommandErrors(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "code.png", testutil.GenerateQRPNG(t, "x", 200))

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"scan", filepath.Join(dir, "nope.png")}},
		{"directory", []string{"scan", dir}},
		{"bad output format", []string{"scan", path, "--format", "csv"}},
		{"bad image format", []string{"scan", path, "--image-format", "heic"}},
		{"no args", []string{"scan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, runCLI(t, nil, tt.args...).err)
		})
	}
}

func TestScanCommandPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "locked.png", testutil.GenerateQRPNG(t, "x", 200))
	require.NoError(t, os.Chmod(path, 0o000))

	res := runCLI(t, nil, "scan", path)
	require.ErrorIs(t, res.err, scan.ErrPermissionDenied)
	assert.Contains(t, res.stderr, "Permission needed")
	assert.Empty(t, res.stdout)
}

func TestBatchCommand(t *testing.T) {
	dir := isolate(t)
	images := filepath.Join(dir, "images")
	testutil.WriteFile(t, images, "a.png", testutil.GenerateQRPNG(t, "first", 300))
	testutil.WriteFile(t, images, "b.jpg", testutil.GenerateQRJPEG(t, "second", 300))
	testutil.WriteFile(t, images, "c.png", testutil.EncodePNG(t, testutil.CreateTestImage(200, 200, testutil.Gray)))
	testutil.WriteFile(t, images, "notes.txt", []byte("not an image"))

	res := runCLI(t, nil, "batch", images, "--format", "json", "--quiet")
	require.NoError(t, res.err, res.stderr)

	var doc struct {
		Images  []batch.Item  `json:"images"`
		Summary batch.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, 3, doc.Summary.Total)
	assert.Equal(t, 2, doc.Summary.Succeeded)
	assert.Equal(t, 1, doc.Summary.NotFound)
	assert.Equal(t, 2, historyLen(t))
}

func TestBatchCommandNoImages(t *testing.T) {
	dir := isolate(t)
	res := runCLI(t, nil, "batch", dir, "--include", "*.png")
	assert.ErrorIs(t, res.err, batch.ErrNoImages)
}

func TestHistoryClear(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "code.png", testutil.GenerateQRPNG(t, "remember me", 300))
	require.NoError(t, runCLI(t, nil, "scan", path).err)

	text := runCLI(t, nil, "history", "list")
	require.NoError(t, text.err)
	assert.Contains(t, text.stdout, "TIME")
	assert.Contains(t, text.stdout, "remember me")

	cleared := runCLI(t, nil, "history", "clear")
	require.NoError(t, cleared.err)
	assert.Contains(t, cleared.stdout, "History cleared.")

	empty := runCLI(t, nil, "history", "list")
	require.NoError(t, empty.err)
	assert.Contains(t, empty.stdout, "No scans recorded.")
}

func TestHistoryDisabled(t *testing.T) {
	isolate(t)
	t.Setenv("QRSCAN_HISTORY_ENABLED", "false")
	res := runCLI(t, nil, "history", "list")
	assert.ErrorIs(t, res.err, errHistoryDisabled)
}

func TestConfigShowAndInit(t *testing.T) {
	dir := isolate(t)
	t.Setenv("QRSCAN_SCAN_TIMEOUT", "4s")

	show := runCLI(t, nil, "config", "show")
	require.NoError(t, show.err)
	assert.Contains(t, show.stdout, "timeout: 4s")
	assert.Contains(t, show.stdout, "target_width: 500")

	path := filepath.Join(dir, "conf", "qrscan.yaml")
	initRes := runCLI(t, nil, "config", "init", path)
	require.NoError(t, initRes.err)
	assert.FileExists(t, path)
	assert.Error(t, runCLI(t, nil, "config", "init", path).err)
	require.NoError(t, runCLI(t, nil, "config", "init", path, "--force").err)

	paths := runCLI(t, nil, "config", "paths")
	require.NoError(t, paths.err)
	assert.Contains(t, paths.stdout, "/etc/qrscan")
}

func TestLogFormatJSON(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteFile(t, dir, "code.png", testutil.GenerateQRPNG(t, "logged", 300))

	res := runCLI(t, nil, "--log-format", "json", "--verbose", "scan", path, "--no-history")
	require.NoError(t, res.err)
	line := strings.SplitN(strings.TrimSpace(res.stderr), "\n", 2)[0]
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &rec), res.stderr)
	assert.Contains(t, rec, "level")
}

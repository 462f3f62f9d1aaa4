package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/diskguard"
	"github.com/pithecene-io/stager/manifest"
	"github.com/pithecene-io/stager/metrics"
	"github.com/pithecene-io/stager/stage"
	"github.com/pithecene-io/stager/types"
)

// useDiskAt replaces the platform disk checker for the duration of the test.
func useDiskAt(t *testing.T, usedPercent uint64, probeErr error) {
	t.Helper()
	prev := newGuard
	newGuard = func() diskChecker {
		return diskguard.New(diskguard.WithProber(diskguard.ProberFunc(func(string) (diskguard.Usage, error) {
			if probeErr != nil {
				return diskguard.Usage{}, probeErr
			}
			return diskguard.Usage{
				Mountpoint: "/",
				Total:      100,
				Free:       100 - usedPercent,
				Available:  100 - usedPercent,
			}, nil
		})))
	}
	t.Cleanup(func() { newGuard = prev })
}

func runApp(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	app := NewApp("test")
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"stager"}, args...))
	if err != nil {
		code = 1
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
	}
	return out.String(), errOut.String(), code
}

func writeSource(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.New(rand.NewSource(3)).Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestStageCommand_JSON(t *testing.T) {
	useDiskAt(t, 40, nil)
	src := writeSource(t, 5000)
	logDir := filepath.Join(t.TempDir(), "logs")

	out, _, code := runApp(t, "stage", "--format", "json", "--max-part-size", "1KiB", "--log-dir", logDir, src)
	require.Equal(t, exitSuccess, code, out)

	var res stage.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, stage.OutcomeStaged, res.Outcome)
	assert.Equal(t, int64(1024), res.Request.MaxPartBytes)
	assert.True(t, res.Request.KeepArchive)
	require.NotEmpty(t, res.Parts)
	for _, p := range res.Parts {
		assert.LessOrEqual(t, p.Size, int64(1024))
	}
	assert.FileExists(t, archive.TargetPath(src))
	assert.FileExists(t, manifest.PathFor(archive.TargetPath(src)))

	logged, err := os.ReadFile(filepath.Join(logDir, config.DefaultLogBase+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "staging completed")
	assert.Contains(t, string(logged), res.StagingID)
	assert.Contains(t, string(logged), "staging metrics")
}

func TestStageCommand_Table(t *testing.T) {
	useDiskAt(t, 40, nil)
	src := writeSource(t, 3000)

	out, _, code := runApp(t, "stage", "--format", "table", "--max-part-size", "1000", "--keep-archive=false", "--log-level", "error", src)
	require.Equal(t, exitSuccess, code, out)
	assert.Contains(t, out, "outcome:")
	assert.Contains(t, out, "staged")
	assert.Contains(t, out, "xxh64")
	assert.Contains(t, out, chunker.PartPath(archive.TargetPath(src), 1))
	assert.NoFileExists(t, archive.TargetPath(src))
}

func TestStageCommand_ConfigFile(t *testing.T) {
	useDiskAt(t, 40, nil)
	src := writeSource(t, 4096)
	cfgPath := filepath.Join(t.TempDir(), "stager.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_part_size: 2KiB\nkeep_archive: false\nlog:\n  level: error\n"), 0o644))

	out, _, code := runApp(t, "stage", "--config", cfgPath, "--format", "json", src)
	require.Equal(t, exitSuccess, code, out)

	var res stage.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(2048), res.Request.MaxPartBytes)
	assert.False(t, res.Request.KeepArchive)
}

func TestStageCommand_LowSpace(t *testing.T) {
	useDiskAt(t, 90, nil)
	src := writeSource(t, 1000)

	out, _, code := runApp(t, "stage", "--format", "json", "--log-level", "error", src)
	assert.Equal(t, exitLowSpace, code)

	var res stage.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, stage.OutcomeLowSpace, res.Outcome)
	assert.NoFileExists(t, archive.TargetPath(src))
}

func TestStageCommand_StrictDiskUnknown(t *testing.T) {
	useDiskAt(t, 0, errors.New("statfs failed"))
	src := writeSource(t, 1000)

	_, _, code := runApp(t, "stage", "--format", "json", "--strict-disk", "--log-level", "error", src)
	assert.Equal(t, exitInspectionFailed, code)

	_, _, code = runApp(t, "stage", "--format", "json", "--log-level", "error", src)
	assert.Equal(t, exitSuccess, code)
}

func TestStageCommand_UsageErrors(t *testing.T) {
	useDiskAt(t, 10, nil)
	src := writeSource(t, 10)

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"stage"}},
		{"bad size", []string{"stage", "--max-part-size", "huge", src}},
		{"bad format", []string{"stage", "--format", "xml", src}},
		{"missing config", []string{"stage", "--config", "/nonexistent/stager.yaml", src}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, code := runApp(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestDiskCommand(t *testing.T) {
	tests := []struct {
		name     string
		used     uint64
		probeErr error
		verdict  string
		code     int
	}{
		{"ok", 50, nil, "ok", exitSuccess},
		{"low space", 90, nil, "low_space", exitLowSpace},
		{"unknown", 0, errors.New("no such device"), "unknown", exitInspectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useDiskAt(t, tt.used, tt.probeErr)

			out, _, code := runApp(t, "disk", "--format", "json", t.TempDir())
			assert.Equal(t, tt.code, code)

			var view DiskView
			require.NoError(t, json.Unmarshal([]byte(out), &view))
			assert.Equal(t, tt.verdict, view.Verdict)
			assert.True(t, filepath.IsAbs(view.Path))
		})
	}
}

func TestDiskCommand_RejectsTUI(t *testing.T) {
	_, _, code := runApp(t, "disk", "--tui")
	assert.Equal(t, exitUsage, code)
}

func TestSplitJoinClean(t *testing.T) {
	useDiskAt(t, 10, nil)
	src := writeSource(t, 2500)

	out, _, code := runApp(t, "split", "--format", "json", "--max-part-size", "1000", "--log-level", "error", src)
	require.Equal(t, exitSuccess, code, out)
	var parts []PartView
	require.NoError(t, json.Unmarshal([]byte(out), &parts))
	require.Len(t, parts, 3)
	assert.Equal(t, []int64{1000, 1000, 500}, []int64{parts[0].Size, parts[1].Size, parts[2].Size})
	require.NoError(t, chunker.Remove([]chunker.Part{{Path: parts[0].Path}, {Path: parts[1].Path}, {Path: parts[2].Path}}))

	out, _, code = runApp(t, "stage", "--format", "json", "--max-part-size", "1000", "--keep-archive=false", "--log-level", "error", src)
	require.Equal(t, exitSuccess, code, out)
	var res stage.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	out, _, code = runApp(t, "join", "--format", "json", res.ManifestPath)
	require.Equal(t, exitSuccess, code, out)
	var joined JoinView
	require.NoError(t, json.Unmarshal([]byte(out), &joined))
	assert.Equal(t, archive.TargetPath(src), joined.Output)
	assert.Equal(t, res.Archive.Size, joined.WrittenBytes)

	// A second join refuses to overwrite.
	_, _, code = runApp(t, "join", "--format", "json", res.ManifestPath)
	assert.Equal(t, exitUsage, code)

	out, _, code = runApp(t, "clean", "--format", "json", src)
	require.Equal(t, exitSuccess, code, out)
	var cleaned CleanView
	require.NoError(t, json.Unmarshal([]byte(out), &cleaned))
	assert.True(t, cleaned.ArchiveRemoved)
	assert.True(t, cleaned.ManifestRemoved)
	assert.Equal(t, len(res.Parts), cleaned.PartsRemoved)
	assert.FileExists(t, src)
}

func TestJoinCommand_TamperedPart(t *testing.T) {
	useDiskAt(t, 10, nil)
	src := writeSource(t, 2500)

	out, _, code := runApp(t, "stage", "--format", "json", "--max-part-size", "1000", "--log-level", "error", src)
	require.Equal(t, exitSuccess, code, out)
	var res stage.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NoError(t, os.WriteFile(res.Parts[0].Path, []byte("tampered"), 0o644))

	dst := filepath.Join(t.TempDir(), "out.zip")
	_, _, code = runApp(t, "join", "--format", "json", res.ManifestPath, dst)
	assert.Equal(t, exitChunkFailed, code)
	assert.NoFileExists(t, dst)
}

func TestVersionCommand(t *testing.T) {
	out, _, code := runApp(t, "version", "--format", "json")
	require.Equal(t, exitSuccess, code)

	var v VersionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, types.Version, v.Version)
	assert.Equal(t, "test", v.Commit)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"low space", &stage.DiskSpaceError{}, exitLowSpace},
		{"inspection", &diskguard.InspectionError{Path: "/", Err: errors.New("x")}, exitInspectionFailed},
		{"archive", &archive.WriteError{Op: "write", Path: "a", Err: errors.New("x")}, exitArchiveFailed},
		{"chunk", &chunker.IOError{Op: "create", Path: "p", Err: errors.New("x")}, exitChunkFailed},
		{"manifest mismatch", fmt.Errorf("%w: bad digest", manifest.ErrMismatch), exitChunkFailed},
		{"wrapped chunk", fmt.Errorf("stage: %w", &chunker.IOError{Err: errors.New("x")}), exitChunkFailed},
		{"other", errors.New("boom"), exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// --- Config precedence tests ---

// newTestCLIContext builds a minimal *cli.Context with the given string
// flags. Flags in flagValues are marked as explicitly set.
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		app.Flags = append(app.Flags, &cli.StringFlag{Name: name, Value: val})
		fs.String(name, val, "")
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"log-dir": "cli-val"}, nil)
	if got := resolveString(c, "log-dir", "config-val"); got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"log-dir": ""})
	if got := resolveString(c, "log-dir", "config-val"); got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"log-level": "info"})
	if got := resolveString(c, "log-level", ""); got != "info" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestResolveBool(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "keep-archive", Value: true}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("keep-archive", true, "")
	c := cli.NewContext(app, fs, nil)

	if resolveBool(c, "keep-archive", false) {
		t.Error("expected config false when flag not set")
	}
	_ = fs.Set("keep-archive", "true")
	if !resolveBool(c, "keep-archive", false) {
		t.Error("expected CLI true to win")
	}
}

func TestConfigVal(t *testing.T) {
	get := func(c *config.Config) string { return c.Output.Format }
	if got := configVal(nil, get); got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
	cfg := &config.Config{Output: config.OutputConfig{Format: "yaml"}}
	if got := configVal(cfg, get); got != "yaml" {
		t.Errorf("expected yaml, got %q", got)
	}
}

func TestMetricsFields(t *testing.T) {
	fields := metricsFields(metrics.Snapshot{
		PartsWritten:    7,
		FailuresByStage: map[string]int64{"split": 2},
	})
	if fields["failures_split"] != int64(2) {
		t.Errorf("expected failures_split=2, got %v", fields["failures_split"])
	}
	if fields["parts_written"] != int64(7) {
		t.Errorf("expected parts_written=7, got %v", fields["parts_written"])
	}
}

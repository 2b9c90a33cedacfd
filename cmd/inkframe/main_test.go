package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkframe/internal/codec"
	"inkframe/internal/config"
	"inkframe/internal/history"
	"inkframe/internal/palette"
	"inkframe/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	dataDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Logging.Format = "json"
	})
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("INKFRAME_API_TOKEN", "")
	t.Setenv("INKFRAME_BIND", "")
	return &cliTestEnv{
		baseDir:    base,
		configPath: testsupport.WriteConfig(t, cfg),
		dataDir:    cfg.Paths.DataDir,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output %q", out)
	}
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[device]\ndither = \"ordered\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, bad)
	if err == nil || !strings.Contains(err.Error(), "device.dither") {
		t.Fatalf("expected dither validation error, got %v", err)
	}
}

func TestPublishStatusAndConvert(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "source.png")
	testsupport.WritePNG(t, src, 400, 240, color.NRGBA{G: 255, A: 255})

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "nothing published yet") {
		t.Fatalf("expected missing image warning, got %q", out)
	}

	out, _, err = runCLI(t, []string{"publish", src}, env.configPath)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	stored := filepath.Join(env.dataDir, "current_image.png")
	if !strings.Contains(out, stored) {
		t.Fatalf("expected stored path in output, got %q", out)
	}
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("stored image missing: %v", err)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "[OK]") || !strings.Contains(out, "192000 bytes packed") {
		t.Fatalf("unexpected status output %q", out)
	}

	packedPath := filepath.Join(env.baseDir, "frame.bin")
	out, _, err = runCLI(t, []string{"convert", src, "--output", packedPath, "--verify"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, "verified") {
		t.Fatalf("expected verification line, got %q", out)
	}
	packed, err := os.ReadFile(packedPath)
	if err != nil {
		t.Fatalf("read packed: %v", err)
	}
	if len(packed) != 192000 {
		t.Fatalf("expected 192000 bytes, got %d", len(packed))
	}
	raster, err := codec.Unpack(packed, 800, 480)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	green, _ := palette.Default().IndexOf("green")
	for i, idx := range raster.Pix {
		if int(idx) != green {
			t.Fatalf("pixel %d = %d, want green (%d)", i, idx, green)
		}
	}

	out, _, err = runCLI(t, []string{"convert", src, "--format", "bmp"}, env.configPath)
	if err != nil {
		t.Fatalf("convert bmp: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.baseDir, "source.bmp")); err != nil {
		t.Fatalf("expected default bmp output: %v (%s)", err, out)
	}

	if _, _, err := runCLI(t, []string{"convert", src, "--format", "tiff"}, env.configPath); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestPublishTargetFollowsOrientation(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDevice(800, 480, "exact", "diffusion"))
	if got := publishTarget(cfg); got.Width != 800 || got.Height != 480 {
		t.Fatalf("horizontal target = %+v", got)
	}
	cfg.Device.Orientation = "vertical"
	if got := publishTarget(cfg); got.Width != 480 || got.Height != 800 {
		t.Fatalf("vertical target = %+v", got)
	}
}

func TestStatusReportLayout(t *testing.T) {
	report := newStatusReport(&bytes.Buffer{})
	report.section("Source")
	report.add(sevOK, "Image", "%d bytes", 3)
	report.section("History")
	report.add(sevWarn, "Deliveries", "")

	want := "== Source ==\n  Image:         [OK] 3 bytes\n\n== History ==\n  Deliveries:    [WARN]\n"
	if got := report.String(); got != want {
		t.Fatalf("unexpected report:\n%q\nwant\n%q", got, want)
	}
}

func TestPaletteCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"palette"}, env.configPath)
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	for _, want := range []string{"Black", "Yellow", "#ff0000", "0x5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("palette output missing %q: %q", want, out)
		}
	}

	out, _, err = runCLI(t, []string{"palette", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("palette --json: %v", err)
	}
	var entries []palette.MappingEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 6 || entries[2].Name != "green" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No deliveries recorded") {
		t.Fatalf("unexpected output %q", out)
	}

	ctx := context.Background()
	store, err := history.Open(ctx, filepath.Join(env.dataDir, "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	for _, outcome := range []string{"fresh", "not_modified", "fresh"} {
		if _, err := store.Record(ctx, history.Delivery{Format: "packed", Outcome: outcome, Status: 200, RemoteAddr: "192.0.2.7:1234"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	_ = store.Close()

	out, _, err = runCLI(t, []string{"history", "--limit", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "not_modified") || !strings.Contains(out, "192.0.2.7:1234") {
		t.Fatalf("unexpected table %q", out)
	}

	out, _, err = runCLI(t, []string{"history", "prune", "--retain", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	if !strings.Contains(out, "Removed 2") {
		t.Fatalf("unexpected prune output %q", out)
	}

	out, _, err = runCLI(t, []string{"history", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1") {
		t.Fatalf("unexpected clear output %q", out)
	}
}

func TestHousekeepingPrunesHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.History.Retain = 2

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, history.Delivery{Format: "packed", Outcome: "fresh", Status: 200}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cfg.Paths.LogDir, "inkframe-2023-01-01.log")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().AddDate(0, 0, -(cfg.Logging.RetentionDays + 5))
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	housekeeping(cfg, store, nil)(ctx)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale log to be pruned: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows after housekeeping, got %d", n)
	}
}

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"inkframe/internal/config"
)

// Retention bounds how much rotated output survives housekeeping. Both bounds
// apply when set: a file goes once it is older than MaxAge or falls outside
// the newest Keep. Zero disables a bound.
type Retention struct {
	MaxAge time.Duration
	Keep   int
}

// RetentionFromConfig reads the [logging] retention settings.
func RetentionFromConfig(cfg *config.Config) Retention {
	if cfg == nil {
		return Retention{}
	}
	return Retention{
		MaxAge: time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour,
		Keep:   cfg.Logging.RetainFiles,
	}
}

// Enabled reports whether any bound is set.
func (r Retention) Enabled() bool {
	return r.MaxAge > 0 || r.Keep > 0
}

// expired decides the fate of the file at rank (0 = newest).
func (r Retention) expired(now, modTime time.Time, rank int) bool {
	if r.Keep > 0 && rank >= r.Keep {
		return true
	}
	return r.MaxAge > 0 && modTime.Before(now.Add(-r.MaxAge))
}

// PruneTarget selects files in Dir whose names match Pattern. Files listed in
// Exclude are never counted or removed.
type PruneTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

type candidate struct {
	path    string
	modTime time.Time
}

// Prune removes the files in each target that fall outside r and returns how
// many were deleted.
func (r Retention) Prune(logger *slog.Logger, now time.Time, targets ...PruneTarget) int {
	if !r.Enabled() {
		return 0
	}
	removed := 0
	for _, target := range targets {
		files := target.candidates()
		sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

		pruned := 0
		for rank, f := range files {
			if !r.expired(now, f.modTime, rank) {
				continue
			}
			if err := os.Remove(f.path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", f.path),
					Error(err),
					String(FieldErrorHint, "check file permissions on paths.log_dir"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			pruned++
		}
		if pruned > 0 && logger != nil {
			logger.Info("log files pruned",
				String("dir", target.Dir),
				Int("removed", pruned),
				Int("kept", len(files)-pruned),
				String(FieldEventType, "log_pruned"),
			)
		}
		removed += pruned
	}
	return removed
}

func (t PruneTarget) candidates() []candidate {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	skip := make(map[string]struct{}, len(t.Exclude))
	for _, p := range t.Exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(p)); err == nil {
			skip[abs] = struct{}{}
		}
	}
	pattern := strings.TrimSpace(t.Pattern)

	var out []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, ok := skip[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, candidate{path: path, modTime: info.ModTime()})
	}
	return out
}

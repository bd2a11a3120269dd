package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/hazard-sim/internal/assembler"
)

// Writer stores a run under its output directory:
//
//	summary.json
//	<module>/<key>.json
//	<module>/<key>.geojson   (succeeded scenarios only)
//
// It implements pipeline.Publisher.
type Writer struct {
	dir    string
	stride int
	logger *slog.Logger
}

// NewWriter creates a writer rooted at dir that samples every stride-th cell
// into GeoJSON.
func NewWriter(dir string, stride int, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, stride: max(stride, 1), logger: logger}
}

// Publish writes every document of the run. Files are replaced atomically so
// readers never see a half-written document.
func (w *Writer) Publish(ctx context.Context, a *assembler.Assembler) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(w.dir, "summary.json"), a.Summary()); err != nil {
		return err
	}

	report := a.Report()
	files := 1
	for _, r := range report.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Module() == "" {
			continue
		}
		dir := filepath.Join(w.dir, string(r.Module()))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create module dir: %w", err)
		}

		doc, err := a.ScenarioDocument(r.Module(), r.Key())
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(dir, r.Key()+".json"), doc); err != nil {
			return err
		}
		files++

		geo := filepath.Join(dir, r.Key()+".geojson")
		if !r.Succeeded() {
			// Drop the collection of an earlier run so it is not mistaken for this one.
			if err := os.Remove(geo); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale geojson: %w", err)
			}
			continue
		}
		fc, err := a.FeatureCollection(r.Module(), r.Key(), w.stride)
		if err != nil {
			return err
		}
		raw, err := fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode geojson %s/%s: %w", r.Module(), r.Key(), err)
		}
		if err := writeFileAtomic(geo, raw); err != nil {
			return err
		}
		files++
	}

	w.logger.Info("run written", "run_id", report.RunID, "dir", w.dir, "files", files)
	return nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, append(raw, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

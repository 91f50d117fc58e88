package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Layout names every file of one run. All files live in Dir and share ID
// as their stem.
type Layout struct {
	Dir string
	ID  string
	Ext string
}

// OutputID builds "<prefix>-<YYYY-MM-DD_HHMMSS>_v<version>" with the dots
// of the version replaced by underscores.
func OutputID(prefix, version string, now time.Time) string {
	return fmt.Sprintf("%s-%s_v%s", prefix, now.Format("2006-01-02_150405"), strings.ReplaceAll(version, ".", "_"))
}

func NewLayout(root, prefix, version, ext string, now time.Time) Layout {
	id := OutputID(prefix, version, now)
	return Layout{Dir: filepath.Join(root, id), ID: id, Ext: ext}
}

// Create makes the run directory. It fails if the directory exists, so two
// runs never share output.
func (l Layout) Create() error {
	if err := os.MkdirAll(filepath.Dir(l.Dir), 0755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	if err := os.Mkdir(l.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

func (l Layout) file(suffix string) string {
	return filepath.Join(l.Dir, l.ID+suffix)
}

func (l Layout) Stream() string   { return l.file("." + l.Ext) }
func (l Layout) Index() string    { return l.file(".index.csv") }
func (l Layout) Settings() string { return l.file(".yaml") }
func (l Layout) Metrics() string  { return l.file(".metrics.csv") }

func (l Layout) Snapshot(timestep uint64) string {
	return l.file(fmt.Sprintf("-snapshot-%010d.%s", timestep, l.Ext))
}

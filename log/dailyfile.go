package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultBackups is how many rotated daily files are kept by default.
const DefaultBackups = 365

const dayLayout = "2006-01-02"

// DailyFile is a log sink that writes to <dir>/<base>.log and, when the UTC
// day changes, renames the finished file to <dir>/<base>.<YYYY-MM-DD>.
// At most backups rotated files are kept; older ones are deleted.
//
// DailyFile satisfies io.WriteCloser and zapcore.WriteSyncer. The caller that
// opens it closes it.
type DailyFile struct {
	mu      sync.Mutex
	dir     string
	base    string
	backups int
	now     func() time.Time

	day  string
	file *os.File
}

// OpenDailyFile opens (or appends to) the active log file in dir.
// A backups value below 1 means DefaultBackups.
func OpenDailyFile(dir, base string, backups int) (*DailyFile, error) {
	return openDailyFile(dir, base, backups, time.Now)
}

func openDailyFile(dir, base string, backups int, now func() time.Time) (*DailyFile, error) {
	if backups < 1 {
		backups = DefaultBackups
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create log directory %q: %w", dir, err)
	}

	d := &DailyFile{dir: dir, base: base, backups: backups, now: now}

	// An existing file left over from an earlier day is rotated on the first write.
	day := d.today()
	if info, err := os.Stat(d.activePath()); err == nil {
		day = info.ModTime().UTC().Format(dayLayout)
	}
	if err := d.openLocked(day); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the path of the file currently being written.
func (d *DailyFile) Path() string {
	return d.activePath()
}

// Write appends p, rotating first if the day has changed.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	if today := d.today(); today != d.day {
		if err := d.rotateLocked(today); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// Sync flushes the active file to disk.
func (d *DailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

// Close closes the active file. Further writes fail with os.ErrClosed.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) today() string {
	return d.now().UTC().Format(dayLayout)
}

func (d *DailyFile) activePath() string {
	return filepath.Join(d.dir, d.base+".log")
}

func (d *DailyFile) rotatedPath(day string) string {
	return filepath.Join(d.dir, d.base+"."+day)
}

func (d *DailyFile) openLocked(day string) error {
	f, err := os.OpenFile(d.activePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open log file: %w", err)
	}
	d.file = f
	d.day = day
	return nil
}

// rotateLocked moves the finished day aside and opens a fresh active file.
// If the move fails the active file is reopened under its old day, so the
// sink keeps working and the next write tries again.
func (d *DailyFile) rotateLocked(today string) error {
	err := d.file.Close()
	d.file = nil
	if err != nil {
		err = fmt.Errorf("cannot close log file for rotation: %w", err)
	} else if rerr := os.Rename(d.activePath(), d.rotatedPath(d.day)); rerr != nil {
		err = fmt.Errorf("cannot rotate log file: %w", rerr)
	}
	if err != nil {
		if oerr := d.openLocked(d.day); oerr != nil {
			return errors.Join(err, oerr)
		}
		return err
	}

	if err := d.openLocked(today); err != nil {
		return err
	}
	return d.pruneLocked()
}

// pruneLocked removes the oldest rotated files beyond the backup limit.
func (d *DailyFile) pruneLocked() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}

	prefix := d.base + "."
	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, err := time.Parse(dayLayout, strings.TrimPrefix(name, prefix)); err != nil {
			continue
		}
		rotated = append(rotated, name)
	}
	if len(rotated) <= d.backups {
		return nil
	}

	// Day-stamped names sort chronologically.
	sort.Strings(rotated)
	for _, name := range rotated[:len(rotated)-d.backups] {
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

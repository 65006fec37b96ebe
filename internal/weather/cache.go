package weather

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dashstat/internal/jsonx"
)

// diskCache stores one JSON file per date under dir.
type diskCache struct {
	dir string
	ttl time.Duration
}

func (c diskCache) forecastPath(date string) string {
	return filepath.Join(c.dir, date+".json")
}

func (c diskCache) sunPath(date string) string {
	return filepath.Join(c.dir, date+"_now.json")
}

// fresh reports whether path exists and was written less than ttl ago.
func (c diskCache) fresh(path string, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) < c.ttl
}

// age returns how long ago path was written.
func (c diskCache) age(path string, now time.Time) (time.Duration, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return max(now.Sub(info.ModTime()), 0), true
}

func (c diskCache) writeJSON(path string, v any) error {
	data, err := jsonx.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readJSON decodes path into v. A missing file returns fs.ErrNotExist.
func (c diskCache) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := jsonx.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c diskCache) readDay(date string) (Day, bool, error) {
	var day Day
	err := c.readJSON(c.forecastPath(date), &day)
	if errors.Is(err, fs.ErrNotExist) {
		return Day{}, false, nil
	}
	if err != nil {
		return Day{}, false, err
	}
	return day, true, nil
}

// readSun returns the cached sun times for date, or zero SunTimes when the
// file is missing or unreadable.
func (c diskCache) readSun(date string) SunTimes {
	var st SunTimes
	if err := c.readJSON(c.sunPath(date), &st); err != nil {
		return SunTimes{}
	}
	return st
}

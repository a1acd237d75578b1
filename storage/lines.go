package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath joins name onto baseDir unless name is already absolute.
// An empty baseDir means the current working directory.
func ResolvePath(baseDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	if baseDir == "" {
		baseDir = "."
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("lines: resolve base dir %q: %w", baseDir, err)
	}
	return filepath.Join(base, name), nil
}

// ReadLines opens the file, drains it into lines and closes it before
// returning, including when reading fails.
func ReadLines(baseDir, name string) (lines []string, err error) {
	path, err := ResolvePath(baseDir, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lines: open %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("lines: close %q: %w", path, cerr)
		}
	}()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lines: read %q: %w", path, err)
	}
	return lines, nil
}

package migrations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const versionLayout = "20060102150405"

// NextVersion derives a migration version from t, e.g. 20240101120000.
func NextVersion(t time.Time) int64 {
	v, _ := strconv.ParseInt(t.UTC().Format(versionLayout), 10, 64)
	return v
}

// FileBaseName turns a free-text message into NNNN_slug.
func FileBaseName(version int64, message string) (string, error) {
	name := strings.ReplaceAll(slug.Make(message), "-", "_")
	if name == "" {
		return "", errors.New("migration message must contain at least one letter or digit")
	}
	return fmt.Sprintf("%d_%s", version, name), nil
}

// GenerateFiles writes an empty up/down pair for every dialect under dir and returns the paths.
func GenerateFiles(dir, message string, now time.Time) ([]string, error) {
	base, err := FileBaseName(NextVersion(now), message)
	if err != nil {
		return nil, err
	}

	message = strings.Join(strings.Fields(message), " ")

	var created []string
	for _, dialect := range Dialects {
		dialectDir := filepath.Join(dir, dialect)
		if err := os.MkdirAll(dialectDir, 0o755); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", dialectDir, err)
		}
		for _, direction := range []string{"up", "down"} {
			path := filepath.Join(dialectDir, base+"."+direction+".sql")
			header := fmt.Sprintf("-- %s (%s, %s)\n", message, dialect, direction)
			if err := writeNewFile(path, header); err != nil {
				return created, err
			}
			created = append(created, path)
		}
	}
	return created, nil
}

func writeNewFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create migration file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-extras/go-kit/must"
)

//go:embed sql
var embedded embed.FS

// Dialects with a migration directory under sql/.
var Dialects = []string{"postgres", "sqlite"}

// EmbeddedFS returns the migrations compiled into the binary for dialect.
func EmbeddedFS(dialect string) fs.FS {
	return must.Must(fs.Sub(embedded, "sql/"+dialect))
}

// SourceFS picks the on-disk dir/<dialect> when dir is set, the embedded copy otherwise.
func SourceFS(dir, dialect string) (fs.FS, error) {
	if dir == "" {
		return EmbeddedFS(dialect), nil
	}
	path := filepath.Join(dir, dialect)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("migrations directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations path %s is not a directory", path)
	}
	return os.DirFS(path), nil
}

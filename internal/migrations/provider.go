package migrations

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Provider supplies migrations sorted by version in ascending order.
type Provider interface {
	Migrations() []*Migration
}

// RegisteredProvider is an in-memory Provider.
type RegisteredProvider struct {
	migrations []*Migration
}

func NewRegisteredProvider(migrations ...*Migration) *RegisteredProvider {
	p := &RegisteredProvider{migrations: migrations}
	sortMigrations(p.migrations)
	return p
}

func (p *RegisteredProvider) Migrations() []*Migration {
	return p.migrations
}

// File describes one parsed migration filename.
type File struct {
	Version   int64
	Name      string
	Direction string
}

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// ParseFileName parses NNNN_name.up.sql / NNNN_name.down.sql.
func ParseFileName(name string) (*File, error) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("invalid migration filename %q", name)
	}
	version, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid migration version in %q: %w", name, err)
	}
	return &File{
		Version:   version,
		Name:      strings.ReplaceAll(m[2], "_", " "),
		Direction: m[3],
	}, nil
}

// FSProvider loads migrations from the top level of a filesystem.
type FSProvider struct {
	migrations []*Migration
}

// NewFSProvider scans fsys. Every version must have both an up and a down file.
func NewFSProvider(fsys fs.FS) (*FSProvider, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, err := ParseFileName(entry.Name())
		if err != nil {
			continue
		}
		m, ok := byVersion[file.Version]
		if !ok {
			m = &Migration{Version: file.Version, Description: file.Name}
			byVersion[file.Version] = m
		} else if m.Description != file.Name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", file.Version, m.Description, file.Name)
		}
		fn := MigrationFuncFromSQLFile(entry.Name(), fsys)
		if file.Direction == "up" {
			m.Up = fn
		} else {
			m.Down = fn
		}
	}

	var incomplete []int64
	migrations := make([]*Migration, 0, len(byVersion))
	for version, m := range byVersion {
		if m.Up == nil || m.Down == nil {
			incomplete = append(incomplete, version)
			continue
		}
		migrations = append(migrations, m)
	}
	if len(incomplete) > 0 {
		sort.Slice(incomplete, func(i, j int) bool { return incomplete[i] < incomplete[j] })
		return nil, fmt.Errorf("incomplete migrations found (missing up or down files): %v", incomplete)
	}

	sortMigrations(migrations)
	return &FSProvider{migrations: migrations}, nil
}

func (p *FSProvider) Migrations() []*Migration {
	return p.migrations
}

func sortMigrations(migrations []*Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}

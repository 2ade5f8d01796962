package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migrations from a directory of an fs.FS.
type Scanner struct {
	files fs.FS
	dir   string
}

// NewScanner returns a scanner over dir inside files.
func NewScanner(files fs.FS, dir string) *Scanner {
	return &Scanner{files: files, dir: dir}
}

// ScanMigrations returns every migration ordered by numeric version.
func (s *Scanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.files, s.dir)
	if err != nil {
		return nil, newMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}

		number, _ := strconv.Atoi(m.Version)
		if existing, ok := seen[number]; ok {
			return nil, newMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, existing, entry.Name()))
		}
		seen[number] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		a, _ := strconv.Atoi(migrations[i].Version)
		b, _ := strconv.Atoi(migrations[j].Version)
		return a < b
	})
	return migrations, nil
}

// ValidateFileName checks that name follows {version}_{description}.sql.
func ValidateFileName(name string) error {
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name)
	}
	return nil
}

func (s *Scanner) parse(name string) (Migration, error) {
	if err := ValidateFileName(name); err != nil {
		return Migration{}, newMigrationError("", name, "validate filename", err)
	}
	matches := fileNamePattern.FindStringSubmatch(name)

	filePath := path.Join(s.dir, name)
	content, err := fs.ReadFile(s.files, filePath)
	if err != nil {
		return Migration{}, newMigrationError(matches[1], filePath, "read file", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return Migration{}, newMigrationError(matches[1], filePath, "parse file",
			fmt.Errorf("%w: empty migration", ErrInvalidMigrationFile))
	}

	sum := sha256.Sum256(content)
	return Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		SQL:         string(content),
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

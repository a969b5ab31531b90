// Package dataset turns raw draw input into the processed text that is
// committed to and the entry list that is shuffled.
package dataset

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Sentinel file names recognized by Load.
const (
	NoSortFile = ".nosort"
	SaltFile   = ".salt"
)

// Source is the input for one draw, loaded from a file tree.
type Source struct {
	Raw     string
	PreSort bool
	// Salt is set when the tree carries a .salt sentinel.
	Salt    string
	HasSalt bool
	Files   []string
}

// Process splits raw on newlines, trims each line and drops blanks. When
// preSort is set the entries are sorted lexicographically. The processed text
// is the entries joined with "\n" and is what the entity hash covers.
func Process(raw string, preSort bool) (string, []string) {
	lines := strings.Split(raw, "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if preSort {
		sort.Strings(entries)
	}
	return strings.Join(entries, "\n"), entries
}

// Load reads every regular file at the root of fsys in name order and
// concatenates them, one file after another. Sentinel files are not data:
// .nosort disables pre-sorting and .salt supplies a fixed salt.
func Load(fsys fs.FS) (Source, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return Source{}, fmt.Errorf("read dataset dir: %w", err)
	}

	src := Source{PreSort: true}
	var parts []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		switch name {
		case NoSortFile:
			src.PreSort = false
			continue
		case SaltFile:
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				return Source{}, fmt.Errorf("read salt: %w", err)
			}
			src.Salt = strings.TrimSpace(string(content))
			src.HasSalt = true
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return Source{}, fmt.Errorf("read dataset file %s: %w", name, err)
		}
		parts = append(parts, string(content))
		src.Files = append(src.Files, name)
	}
	if len(src.Files) == 0 {
		return Source{}, fmt.Errorf("dataset has no data files")
	}
	src.Raw = strings.Join(parts, "\n")
	return src, nil
}

// Processed runs Process over the loaded data with the loaded sort flag.
func (s Source) Processed() (string, []string) {
	return Process(s.Raw, s.PreSort)
}

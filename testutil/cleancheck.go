package testutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// TestingT is an interface that matches the subset of testing.T methods we need.
// This allows for easier testing of the test helpers themselves.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DirSnapshot is the set of files below a directory at a point in time.
type DirSnapshot struct {
	root  string
	files map[string]bool
}

// SnapshotDir records every regular file below root, as slash-separated relative paths.
func SnapshotDir(root string) (*DirSnapshot, error) {
	snapshot := &DirSnapshot{root: root, files: make(map[string]bool)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		snapshot.files[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// NewFiles returns the files that appeared below the snapshot's root since it was taken, sorted.
func (s *DirSnapshot) NewFiles() ([]string, error) {
	current, err := SnapshotDir(s.root)
	if err != nil {
		return nil, err
	}

	var added []string
	for file := range current.files {
		if !s.files[file] {
			added = append(added, file)
		}
	}
	sort.Strings(added)
	return added, nil
}

// AssertOnlyNewFiles fails the test when the files created since the snapshot differ from expected.
// A dry run, for example, may write its report but nothing else.
func AssertOnlyNewFiles(t TestingT, snapshot *DirSnapshot, expected ...string) {
	t.Helper()

	if snapshot == nil {
		t.Fatalf("snapshot is nil")
		return
	}

	added, err := snapshot.NewFiles()
	if err != nil {
		t.Fatalf("failed to snapshot %s: %v", snapshot.root, err)
		return
	}

	sort.Strings(expected)
	if strings.Join(added, "\n") != strings.Join(expected, "\n") {
		t.Errorf("unexpected files in %s:\ngot:\n%s\nwant:\n%s", snapshot.root, strings.Join(added, "\n"), strings.Join(expected, "\n"))
	}
}

// Package scan walks a repository and flags hygiene issues: stray backup
// files, cache bloat, and non-descriptive names. It only produces candidate
// paths; every mutation goes through the transaction executor.
package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/session"
)

const (
	IssueBackupFile = "backup_file"
	IssueBloatFile  = "bloat_file"
	IssueJunkName   = "junk_name"
)

type Issue struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Ruleset is the immutable pattern table driving a scan. Built once at
// startup and injected; never mutated afterwards.
type Ruleset struct {
	BackupSuffixes    []string
	BloatDirectories  []string
	JunkNamePrefixes  []string
	IgnoreDirectories []string
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		BackupSuffixes:   []string{".bak", ".backup", ".orig", ".tmp", "~"},
		BloatDirectories: []string{"__pycache__", ".pytest_cache", ".mypy_cache", "node_modules/.cache"},
		JunkNamePrefixes: []string{"ENHANCED_", "FINAL_", "new_", "copy_of_", "untitled"},
		IgnoreDirectories: []string{
			".git", ".hg", ".svn", session.DefaultBackupDirName, ".repoclean",
		},
	}
}

// Extend returns a copy of the ruleset with extra backup suffixes and
// ignored directories appended.
func (r Ruleset) Extend(extraSuffixes, extraIgnores []string) Ruleset {
	extended := r
	extended.BackupSuffixes = append(append([]string{}, r.BackupSuffixes...), extraSuffixes...)
	extended.IgnoreDirectories = append(append([]string{}, r.IgnoreDirectories...), extraIgnores...)
	return extended
}

type Scanner struct {
	repositoryPath string
	rules          Ruleset
}

func NewScanner(repositoryPath string, rules Ruleset) *Scanner {
	return &Scanner{repositoryPath: repositoryPath, rules: rules}
}

// Scan walks the repository and returns issues sorted by path. Read-only:
// the scanner never touches the files it flags.
func (s *Scanner) Scan() ([]Issue, error) {
	var issues []Issue
	walkErr := filepath.WalkDir(s.repositoryPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, relErr := filepath.Rel(s.repositoryPath, path)
		if relErr != nil || relative == "." {
			return nil
		}
		if entry.IsDir() {
			if s.ignoredDirectory(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if issue, flagged := s.classify(relative, entry.Name()); flagged {
			issues = append(issues, issue)
		}
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrap(walkErr, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("scan repository %s: %v", s.repositoryPath, walkErr), s.repositoryPath,
			"check the repository is readable")
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues, nil
}

func (s *Scanner) classify(relativePath, name string) (Issue, bool) {
	for _, suffix := range s.rules.BackupSuffixes {
		if strings.HasSuffix(name, suffix) {
			return Issue{
				Path:   relativePath,
				Kind:   IssueBackupFile,
				Reason: fmt.Sprintf("backup file suffix %q", suffix),
			}, true
		}
	}
	slashPath := filepath.ToSlash(relativePath)
	for _, bloatDir := range s.rules.BloatDirectories {
		if strings.Contains(slashPath, bloatDir+"/") {
			return Issue{
				Path:   relativePath,
				Kind:   IssueBloatFile,
				Reason: fmt.Sprintf("inside regenerable cache directory %q", bloatDir),
			}, true
		}
	}
	lowerName := strings.ToLower(name)
	for _, prefix := range s.rules.JunkNamePrefixes {
		if strings.HasPrefix(name, prefix) || strings.HasPrefix(lowerName, strings.ToLower(prefix)) {
			return Issue{
				Path:   relativePath,
				Kind:   IssueJunkName,
				Reason: fmt.Sprintf("non-descriptive name prefix %q", prefix),
			}, true
		}
	}
	return Issue{}, false
}

func (s *Scanner) ignoredDirectory(name string) bool {
	for _, ignored := range s.rules.IgnoreDirectories {
		if name == ignored {
			return true
		}
	}
	return false
}

// Deletable reports whether an issue kind is safe to hand to the executor
// for deletion. Junk names are report-only rename candidates.
func Deletable(kind string) bool {
	return kind == IssueBackupFile || kind == IssueBloatFile
}

package scan

import (
	"path/filepath"
	"testing"

	"github.com/davidahmann/repoclean/internal/testutil"
)

func TestScanFlagsIssues(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		"src/main.go":                  "package main\n",
		"src/main.go.bak":              "stale\n",
		"notes.orig":                   "merge leftover\n",
		"__pycache__/mod.cpython.pyc":  "bytecode",
		"docs/FINAL_notes.md":          "notes",
		".git/objects/ab/cdef":         "gitdata",
		".repoclean-backups/s_old.bak": "backup artifact",
	})
	issues, err := NewScanner(repo, DefaultRuleset()).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	byPath := map[string]string{}
	for _, issue := range issues {
		byPath[issue.Path] = issue.Kind
	}
	wantKinds := map[string]string{
		"src/main.go.bak":             IssueBackupFile,
		"notes.orig":                  IssueBackupFile,
		"__pycache__/mod.cpython.pyc": IssueBloatFile,
		"docs/FINAL_notes.md":         IssueJunkName,
	}
	if len(issues) != len(wantKinds) {
		t.Fatalf("got %d issues, want %d: %v", len(issues), len(wantKinds), byPath)
	}
	for path, kind := range wantKinds {
		native := filepath.FromSlash(path)
		if byPath[native] != kind {
			t.Fatalf("path %s classified as %q, want %q", path, byPath[native], kind)
		}
	}
}

func TestScanResultsAreSorted(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		"z.bak": "z",
		"a.bak": "a",
		"m.bak": "m",
	})
	issues, err := NewScanner(repo, DefaultRuleset()).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for index := 1; index < len(issues); index++ {
		if issues[index-1].Path > issues[index].Path {
			t.Fatalf("issues unsorted: %s before %s", issues[index-1].Path, issues[index].Path)
		}
	}
}

func TestScanIgnoresBackupDirectory(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		".repoclean-backups/s_old.bak": "artifact",
		".hg/store/data.bak":           "vcs",
	})
	issues, err := NewScanner(repo, DefaultRuleset()).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("ignored directories produced issues: %v", issues)
	}
}

func TestRulesetExtend(t *testing.T) {
	base := DefaultRuleset()
	extended := base.Extend([]string{".old"}, []string{"vendor"})
	repo := testutil.TempRepo(t, map[string]string{
		"legacy.old":        "x",
		"vendor/dep.go.bak": "y",
	})
	issues, err := NewScanner(repo, extended).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %v", len(issues), issues)
	}
	if issues[0].Path != "legacy.old" || issues[0].Kind != IssueBackupFile {
		t.Fatalf("issue = %+v", issues[0])
	}
	if len(base.BackupSuffixes) == len(extended.BackupSuffixes) {
		t.Fatal("Extend must not mutate the receiver")
	}
}

func TestDeletable(t *testing.T) {
	cases := []struct {
		kind string
		want bool
	}{
		{IssueBackupFile, true},
		{IssueBloatFile, true},
		{IssueJunkName, false},
		{"unknown", false},
	}
	for _, testCase := range cases {
		if got := Deletable(testCase.kind); got != testCase.want {
			t.Fatalf("Deletable(%q) = %t, want %t", testCase.kind, got, testCase.want)
		}
	}
}

func TestExplanationsCoverEveryKind(t *testing.T) {
	kinds := map[string]bool{}
	for _, explanation := range Explanations() {
		if explanation.Summary == "" || explanation.Remediation == "" {
			t.Fatalf("explanation for %s is incomplete", explanation.Kind)
		}
		kinds[explanation.Kind] = true
	}
	for _, kind := range []string{IssueBackupFile, IssueBloatFile, IssueJunkName} {
		if !kinds[kind] {
			t.Fatalf("no explanation for %s", kind)
		}
	}
	if _, found := ExplanationFor("unknown"); found {
		t.Fatal("ExplanationFor must not match unknown kinds")
	}
}

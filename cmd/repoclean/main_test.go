package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/davidahmann/repoclean/internal/testutil"
)

func TestRunDispatch(t *testing.T) {
	if code := runDispatch([]string{"repoclean"}); code != exitInvalidInput {
		t.Fatalf("no args: expected %d got %d", exitInvalidInput, code)
	}
	if code := runDispatch([]string{"repoclean", "version"}); code != exitOK {
		t.Fatalf("version: expected %d got %d", exitOK, code)
	}
	if code := runDispatch([]string{"repoclean", "unknown"}); code != exitInvalidInput {
		t.Fatalf("unknown: expected %d got %d", exitInvalidInput, code)
	}
	if code := runDispatch([]string{"repoclean", "--explain"}); code != exitOK {
		t.Fatalf("explain: expected %d got %d", exitOK, code)
	}
	for _, command := range []string{"scan", "clean", "delete", "rename", "status", "rollback", "sweep", "explain", "doctor"} {
		if code := runDispatch([]string{"repoclean", command, "--help"}); code != exitOK {
			t.Fatalf("%s --help: expected %d got %d", command, exitOK, code)
		}
		if code := runDispatch([]string{"repoclean", command, "--explain"}); code != exitOK {
			t.Fatalf("%s --explain: expected %d got %d", command, exitOK, code)
		}
	}
}

func TestMainEntrypoint(t *testing.T) {
	if os.Getenv("REPOCLEAN_TEST_MAIN") == "1" {
		os.Args = []string{"repoclean", "version"}
		main()
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=TestMainEntrypoint")
	cmd.Env = append(os.Environ(), "REPOCLEAN_TEST_MAIN=1")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run child process: %v", err)
	}
}

func TestCleanApplyAndRollbackFlow(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		"src/main.go":     "package main\n",
		"src/main.go.bak": "stale\n",
		"notes.orig":      "leftover\n",
		"docs/FINAL.md":   "junk name\n",
	})

	if code := runDispatch([]string{"repoclean", "scan", "--repo", repo, "--json"}); code != exitOK {
		t.Fatalf("scan: exit %d", code)
	}

	// Dry run must not touch anything.
	if code := runDispatch([]string{"repoclean", "clean", "--repo", repo, "--json"}); code != exitOK {
		t.Fatalf("clean dry-run: exit %d", code)
	}
	if !testutil.FileExists(t, filepath.Join(repo, "src", "main.go.bak")) {
		t.Fatal("dry run deleted a file")
	}

	if code := runDispatch([]string{"repoclean", "clean", "--repo", repo, "--apply", "--json"}); code != exitOK {
		t.Fatalf("clean --apply: exit %d", code)
	}
	if testutil.FileExists(t, filepath.Join(repo, "src", "main.go.bak")) {
		t.Fatal("backup file not deleted")
	}
	if testutil.FileExists(t, filepath.Join(repo, "notes.orig")) {
		t.Fatal("orig file not deleted")
	}
	if !testutil.FileExists(t, filepath.Join(repo, "docs", "FINAL.md")) {
		t.Fatal("junk-name file must be report-only")
	}
	if !testutil.FileExists(t, filepath.Join(repo, "src", "main.go")) {
		t.Fatal("clean touched an unflagged file")
	}

	if code := runDispatch([]string{"repoclean", "status", "--repo", repo, "--json"}); code != exitOK {
		t.Fatalf("status: exit %d", code)
	}

	if code := runDispatch([]string{"repoclean", "rollback", "--all", "--repo", repo, "--json"}); code != exitOK {
		t.Fatalf("rollback --all: exit %d", code)
	}
	restored := testutil.MustReadFile(t, filepath.Join(repo, "src", "main.go.bak"))
	if string(restored) != "stale\n" {
		t.Fatalf("restored content = %q", string(restored))
	}
	if !testutil.FileExists(t, filepath.Join(repo, "notes.orig")) {
		t.Fatal("rollback did not restore notes.orig")
	}
}

func TestDeleteAndRenameCommands(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		"old.tmp":       "temp data\n",
		"copy_of_a.txt": "content\n",
	})

	if code := runDispatch([]string{"repoclean", "delete", "--repo", repo, "--path", filepath.Join(repo, "old.tmp"), "--reason", "temp file", "--json"}); code != exitOK {
		t.Fatalf("delete: exit %d", code)
	}
	if testutil.FileExists(t, filepath.Join(repo, "old.tmp")) {
		t.Fatal("delete left the file in place")
	}

	// Absent path deletes are no-op successes.
	if code := runDispatch([]string{"repoclean", "delete", "--repo", repo, "--path", filepath.Join(repo, "old.tmp"), "--json"}); code != exitOK {
		t.Fatalf("idempotent delete: exit %d", code)
	}

	source := filepath.Join(repo, "copy_of_a.txt")
	destination := filepath.Join(repo, "a.txt")
	if code := runDispatch([]string{"repoclean", "rename", "--repo", repo, "--source", source, "--destination", destination, "--json"}); code != exitOK {
		t.Fatalf("rename: exit %d", code)
	}
	if !testutil.FileExists(t, destination) {
		t.Fatal("rename did not create the destination")
	}

	// Renaming the now-missing source must fail the precondition check.
	if code := runDispatch([]string{"repoclean", "rename", "--repo", repo, "--source", source, "--destination", filepath.Join(repo, "b.txt"), "--json"}); code != exitPreconditionFailed {
		t.Fatalf("rename missing source: exit %d, want %d", code, exitPreconditionFailed)
	}
}

func TestRollbackUnknownOperationExitCode(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{"x.bak": "x"})
	if code := runDispatch([]string{"repoclean", "clean", "--repo", repo, "--apply", "--json"}); code != exitOK {
		t.Fatalf("clean --apply: exit %d", code)
	}
	if code := runDispatch([]string{"repoclean", "rollback", "--op", "missing_0001", "--repo", repo, "--json"}); code != exitNotFound {
		t.Fatalf("rollback unknown op: exit %d, want %d", code, exitNotFound)
	}
	if code := runDispatch([]string{"repoclean", "rollback", "--repo", repo, "--json"}); code != exitInvalidInput {
		t.Fatalf("rollback without selector: exit %d, want %d", code, exitInvalidInput)
	}
}

func TestSweepAndDoctorCommands(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{"keep.txt": "k"})
	if code := runDispatch([]string{"repoclean", "sweep", "--repo", repo, "--max-age-days", "30", "--json"}); code != exitOK {
		t.Fatalf("sweep: exit %d", code)
	}
	if code := runDispatch([]string{"repoclean", "doctor", "--repo", repo, "--json"}); code != exitOK {
		t.Fatalf("doctor: exit %d", code)
	}
	if code := runDispatch([]string{"repoclean", "doctor", "--repo", filepath.Join(repo, "nope"), "--json"}); code == exitOK {
		t.Fatal("doctor on a missing repository must not pass")
	}
}

func TestExplainIssueCommand(t *testing.T) {
	if code := runDispatch([]string{"repoclean", "explain", "--issue", "backup_file", "--json"}); code != exitOK {
		t.Fatalf("explain backup_file: exit %d", code)
	}
	if code := runDispatch([]string{"repoclean", "explain", "--json"}); code != exitOK {
		t.Fatalf("explain all: exit %d", code)
	}
	if code := runDispatch([]string{"repoclean", "explain", "--issue", "nope", "--json"}); code != exitNotFound {
		t.Fatalf("explain unknown: exit %d, want %d", code, exitNotFound)
	}
}

func TestConfigDrivesCleanAndSweep(t *testing.T) {
	repo := testutil.TempRepo(t, map[string]string{
		"legacy.old": "x",
		".repoclean/config.yaml": `
backup:
  retention_days: 7
scan:
  extra_suffixes:
    - ".old"
`,
	})
	if code := runDispatch([]string{"repoclean", "clean", "--repo", repo, "--apply", "--json"}); code != exitOK {
		t.Fatalf("clean with config: exit %d", code)
	}
	if testutil.FileExists(t, filepath.Join(repo, "legacy.old")) {
		t.Fatal("config extra suffix not applied")
	}
}

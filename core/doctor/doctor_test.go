package doctor

import (
	"path/filepath"
	"testing"

	"github.com/davidahmann/repoclean/core/journal"
	"github.com/davidahmann/repoclean/core/session"
	"github.com/davidahmann/repoclean/internal/testutil"
)

func checkByName(result Result, name string) (Check, bool) {
	for _, check := range result.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return Check{}, false
}

func TestRunHealthyEnvironment(t *testing.T) {
	repo := t.TempDir()
	result := Run(Options{RepositoryPath: repo, ProducerVersion: "0.0.0-test"})
	if result.Status != "pass" {
		t.Fatalf("status = %q, checks = %+v", result.Status, result.Checks)
	}
	for _, name := range []string{"repository_path", "repository_writable", "backup_directory", "journal_schemas", "session_journals"} {
		check, found := checkByName(result, name)
		if !found {
			t.Fatalf("missing check %s", name)
		}
		if check.Status != "pass" {
			t.Fatalf("check %s = %q (%s)", name, check.Status, check.Message)
		}
	}
	if result.SchemaID != "repoclean.cleanup.doctor_result" {
		t.Fatalf("schema id = %q", result.SchemaID)
	}
}

func TestRunMissingRepository(t *testing.T) {
	result := Run(Options{RepositoryPath: filepath.Join(t.TempDir(), "nope")})
	if result.Status != "fail" {
		t.Fatalf("status = %q, want fail", result.Status)
	}
	check, found := checkByName(result, "repository_path")
	if !found || check.Status != "fail" {
		t.Fatalf("repository_path check = %+v", check)
	}
}

func TestRunWarnsOnDamagedJournal(t *testing.T) {
	repo := t.TempDir()
	sess, err := session.Create(repo, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := journal.New(sess.JournalPath).Init(sess.Header("0.0.0-test")); err != nil {
		t.Fatalf("init journal: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	testutil.WriteFile(t, sess.JournalPath, []byte("{not json\n"))

	result := Run(Options{RepositoryPath: repo, ProducerVersion: "0.0.0-test"})
	if result.Status != "warn" {
		t.Fatalf("status = %q, want warn", result.Status)
	}
	name := "session_journal:" + filepath.Base(sess.JournalPath)
	check, found := checkByName(result, name)
	if !found || check.Status != "warn" {
		t.Fatalf("journal check = %+v (found=%t)", check, found)
	}
}

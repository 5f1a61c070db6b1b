package rollback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/journal"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
	"github.com/davidahmann/repoclean/core/session"
	"github.com/davidahmann/repoclean/core/txn"
	"github.com/davidahmann/repoclean/internal/testutil"
)

func newTestRun(t *testing.T, files map[string]string) (*txn.Executor, *Engine, string) {
	t.Helper()
	repo := testutil.TempRepo(t, files)
	sess, err := session.Create(repo, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	executor, err := txn.NewExecutor(sess, "0.0.0-test")
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor, NewEngine(sess, "0.0.0-test"), repo
}

func TestRollbackDeleteRestoresContent(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"old.bak": "original content"})
	target := filepath.Join(repo, "old.bak")

	deleted, err := executor.SafeDelete(target, "")
	if err != nil {
		t.Fatalf("SafeDelete: %v", err)
	}
	result, err := engine.RollbackOperation(deleted.Operation.OperationID)
	if err != nil {
		t.Fatalf("RollbackOperation: %v", err)
	}
	if result.RestoredPath != target {
		t.Fatalf("restored path = %q", result.RestoredPath)
	}
	if got := testutil.MustReadFile(t, target); string(got) != "original content" {
		t.Fatalf("restored content = %q", string(got))
	}
}

func TestRollbackRenameMovesBack(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"FINAL_doc.md": "content"})
	source := filepath.Join(repo, "FINAL_doc.md")
	destination := filepath.Join(repo, "doc.md")

	renamed, err := executor.SafeRename(source, destination, "")
	if err != nil {
		t.Fatalf("SafeRename: %v", err)
	}
	if _, err := engine.RollbackOperation(renamed.Operation.OperationID); err != nil {
		t.Fatalf("RollbackOperation: %v", err)
	}
	if !testutil.FileExists(t, source) {
		t.Fatal("source not restored")
	}
	if testutil.FileExists(t, destination) {
		t.Fatal("destination still exists after rollback")
	}
}

func TestRollbackUnknownOperation(t *testing.T) {
	_, engine, _ := newTestRun(t, nil)
	_, err := engine.RollbackOperation("nope_0001")
	if err == nil {
		t.Fatal("expected error for unknown operation")
	}
	if errors.CategoryOf(err) != errors.CategoryNotFound {
		t.Fatalf("category = %q, want not_found", errors.CategoryOf(err))
	}
}

func TestRollbackTwiceFails(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"old.bak": "x"})
	deleted, err := executor.SafeDelete(filepath.Join(repo, "old.bak"), "")
	if err != nil {
		t.Fatalf("SafeDelete: %v", err)
	}
	operationID := deleted.Operation.OperationID
	if _, err := engine.RollbackOperation(operationID); err != nil {
		t.Fatalf("first rollback: %v", err)
	}
	_, err = engine.RollbackOperation(operationID)
	if err == nil {
		t.Fatal("second rollback must fail")
	}
	if errors.CategoryOf(err) != errors.CategoryPrecondition {
		t.Fatalf("category = %q, want precondition", errors.CategoryOf(err))
	}
}

func TestRollbackSessionReversesInOrder(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"first.bak": "1"})
	source := filepath.Join(repo, "first.bak")
	renamedTo := filepath.Join(repo, "first.txt")

	// Rename then delete the same file; only reverse order can restore it.
	if _, err := executor.SafeRename(source, renamedTo, ""); err != nil {
		t.Fatalf("SafeRename: %v", err)
	}
	if _, err := executor.SafeDelete(renamedTo, ""); err != nil {
		t.Fatalf("SafeDelete: %v", err)
	}

	rolledBack, err := engine.RollbackSession()
	if err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if rolledBack != 2 {
		t.Fatalf("rolled back %d, want 2", rolledBack)
	}
	if !testutil.FileExists(t, source) {
		t.Fatal("original file not restored")
	}
	if testutil.FileExists(t, renamedTo) {
		t.Fatal("intermediate name still present")
	}
}

func TestRollbackSessionSkipsAlreadyRolledBack(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{
		"a.bak": "a",
		"b.bak": "b",
	})
	first, err := executor.SafeDelete(filepath.Join(repo, "a.bak"), "")
	if err != nil {
		t.Fatalf("delete a: %v", err)
	}
	if _, err := executor.SafeDelete(filepath.Join(repo, "b.bak"), ""); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	if _, err := engine.RollbackOperation(first.Operation.OperationID); err != nil {
		t.Fatalf("single rollback: %v", err)
	}

	rolledBack, err := engine.RollbackSession()
	if err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("rolled back %d, want 1", rolledBack)
	}
}

func TestRollbackSessionReportsPartialFailure(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{
		"a.bak": "a",
		"b.bak": "b",
	})
	if _, err := executor.SafeDelete(filepath.Join(repo, "a.bak"), ""); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	damaged, err := executor.SafeDelete(filepath.Join(repo, "b.bak"), "")
	if err != nil {
		t.Fatalf("delete b: %v", err)
	}
	// Remove the second operation's backup artifact so its rollback fails.
	if err := os.Remove(damaged.Operation.BackupPath); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	rolledBack, err := engine.RollbackSession()
	if rolledBack != 1 {
		t.Fatalf("rolled back %d, want 1", rolledBack)
	}
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if errors.CategoryOf(err) != errors.CategoryAggregate {
		t.Fatalf("category = %q, want aggregate", errors.CategoryOf(err))
	}
	failures := errors.FailuresOf(err)
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].OperationID != damaged.Operation.OperationID {
		t.Fatalf("failed operation = %q, want %q", failures[0].OperationID, damaged.Operation.OperationID)
	}
	if !testutil.FileExists(t, filepath.Join(repo, "a.bak")) {
		t.Fatal("first delete was not rolled back")
	}
}

func TestRollbackWritesMarker(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"old.bak": "x"})
	deleted, err := executor.SafeDelete(filepath.Join(repo, "old.bak"), "")
	if err != nil {
		t.Fatalf("SafeDelete: %v", err)
	}
	if _, err := engine.RollbackOperation(deleted.Operation.OperationID); err != nil {
		t.Fatalf("RollbackOperation: %v", err)
	}

	snapshot, err := journal.New(executor.Session().JournalPath).Load()
	if err != nil {
		t.Fatalf("load journal: %v", err)
	}
	if snapshot.State(deleted.Operation.OperationID) != cleanup.StateRolledBack {
		t.Fatalf("state = %q, want rolled_back", snapshot.State(deleted.Operation.OperationID))
	}
}

func TestRollbackRenameMissingDestination(t *testing.T) {
	executor, engine, repo := newTestRun(t, map[string]string{"FINAL_doc.md": "content"})
	renamed, err := executor.SafeRename(filepath.Join(repo, "FINAL_doc.md"), filepath.Join(repo, "doc.md"), "")
	if err != nil {
		t.Fatalf("SafeRename: %v", err)
	}
	if err := os.Remove(filepath.Join(repo, "doc.md")); err != nil {
		t.Fatalf("remove renamed file: %v", err)
	}
	_, err = engine.RollbackOperation(renamed.Operation.OperationID)
	if err == nil {
		t.Fatal("expected error when the renamed file is gone")
	}
	if errors.CategoryOf(err) != errors.CategoryFileSystem {
		t.Fatalf("category = %q, want filesystem", errors.CategoryOf(err))
	}
}

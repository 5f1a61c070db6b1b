// Package rollback reverses journaled operations by driving the backup
// store from journal entries, individually or for a whole session in
// reverse chronological order.
package rollback

import (
	"fmt"
	"os"
	"time"

	"github.com/davidahmann/repoclean/core/backup"
	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/journal"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
	"github.com/davidahmann/repoclean/core/session"
)

type Engine struct {
	session         *session.Session
	backups         *backup.Store
	journal         *journal.Journal
	producerVersion string
}

// Result reports one reversed operation. JournalWarning carries a demoted
// persistence failure writing the rollback marker: the restore itself
// already succeeded.
type Result struct {
	OperationID    string                `json:"operation_id"`
	OperationType  cleanup.OperationType `json:"operation_type"`
	RestoredPath   string                `json:"restored_path"`
	JournalWarning string                `json:"journal_warning,omitempty"`
}

func NewEngine(sess *session.Session, producerVersion string) *Engine {
	return &Engine{
		session:         sess,
		backups:         backup.NewStore(sess.RepositoryPath, sess.BackupDirectory, sess.ID),
		journal:         journal.New(sess.JournalPath),
		producerVersion: producerVersion,
	}
}

// RollbackOperation reverses a single operation by id. A Delete is restored
// from its backup artifact and the restored content is verified against the
// recorded hash. A Rename is renamed back with no hash check; the rename
// never altered content. Each operation moves Completed -> RolledBack once;
// there is no reverse transition.
func (e *Engine) RollbackOperation(operationID string) (Result, error) {
	snapshot, err := e.journal.Load()
	if err != nil {
		return Result{}, err
	}
	return e.rollbackFromSnapshot(snapshot, operationID)
}

// RollbackSession reverses every completed operation in reverse insertion
// order, best-effort: it does not stop at the first failure, returns how
// many operations were rolled back, and reports per-operation causes in an
// aggregate error when any fail.
func (e *Engine) RollbackSession() (int, error) {
	snapshot, err := e.journal.Load()
	if err != nil {
		return 0, err
	}
	rolledBack := 0
	var failures []errors.OperationFailure
	for index := len(snapshot.Operations) - 1; index >= 0; index-- {
		operation := snapshot.Operations[index]
		if snapshot.RolledBack[operation.OperationID] {
			continue
		}
		if _, opErr := e.rollbackFromSnapshot(snapshot, operation.OperationID); opErr != nil {
			failures = append(failures, errors.OperationFailure{
				OperationID: operation.OperationID,
				Err:         opErr,
			})
			continue
		}
		snapshot.RolledBack[operation.OperationID] = true
		rolledBack++
	}
	return rolledBack, errors.NewAggregate(rolledBack, failures)
}

func (e *Engine) rollbackFromSnapshot(snapshot journal.Snapshot, operationID string) (Result, error) {
	operation, found := snapshot.Find(operationID)
	if !found {
		return Result{}, errors.New(errors.CategoryNotFound, errors.SeverityError,
			fmt.Sprintf("operation not found: %s", operationID), e.session.JournalPath,
			"list operation ids with 'repoclean status'")
	}
	if snapshot.State(operationID) == cleanup.StateRolledBack {
		return Result{}, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("operation already rolled back: %s", operationID), e.session.JournalPath,
			"a rolled-back operation is never re-applied")
	}

	var restoredPath string
	switch operation.OperationType {
	case cleanup.OperationDelete:
		if err := e.backups.Restore(operation.BackupPath, operation.SourcePath, operation.ContentHash); err != nil {
			return Result{}, err
		}
		restoredPath = operation.SourcePath
	case cleanup.OperationRename:
		if _, err := os.Lstat(operation.DestinationPath); os.IsNotExist(err) {
			return Result{}, errors.New(errors.CategoryFileSystem, errors.SeverityError,
				fmt.Sprintf("renamed file missing: %s", operation.DestinationPath),
				operation.DestinationPath,
				"the renamed file was moved or deleted outside this tool; restore it manually first")
		} else if err != nil {
			return Result{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
				fmt.Sprintf("stat %s: %v", operation.DestinationPath, err),
				operation.DestinationPath, "check filesystem permissions")
		}
		if err := os.Rename(operation.DestinationPath, operation.SourcePath); err != nil {
			return Result{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
				fmt.Sprintf("rename %s back to %s: %v", operation.DestinationPath, operation.SourcePath, err),
				operation.DestinationPath, "check write permissions on both paths")
		}
		restoredPath = operation.SourcePath
	default:
		return Result{}, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("cannot roll back operation type %q", operation.OperationType),
			e.session.JournalPath, "the journal may have been written by a newer version")
	}

	result := Result{
		OperationID:   operation.OperationID,
		OperationType: operation.OperationType,
		RestoredPath:  restoredPath,
	}
	marker := cleanup.RollbackMarker{
		CreatedAt:       time.Now().UTC(),
		ProducerVersion: e.producerVersion,
		SessionID:       e.session.ID,
		OperationID:     operation.OperationID,
	}
	if err := e.journal.AppendRollback(marker); err != nil {
		result.JournalWarning = err.Error()
	}
	return result, nil
}

// Package txn is the only component allowed to mutate tracked files. Every
// mutation follows the same sequence: backup, verify, mutate, log. Nothing
// irreversible happens before the backup is hash-verified, and a journal
// write failure after a completed mutation is a warning, never a reason to
// reverse the mutation.
package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidahmann/repoclean/core/backup"
	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/journal"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
	"github.com/davidahmann/repoclean/core/session"
)

type Executor struct {
	session         *session.Session
	backups         *backup.Store
	journal         *journal.Journal
	producerVersion string
	nextSequence    int64
}

// Result reports one executor call. Changed is false for idempotent no-ops.
// JournalWarning carries a demoted persistence failure: the mutation stands
// even though the journal line could not be written.
type Result struct {
	Changed        bool                     `json:"changed"`
	Operation      *cleanup.OperationRecord `json:"operation,omitempty"`
	JournalWarning string                   `json:"journal_warning,omitempty"`
}

// NewExecutor opens the session journal, writing the header line for a
// fresh session, and resumes sequence numbering after any existing entries.
func NewExecutor(sess *session.Session, producerVersion string) (*Executor, error) {
	sessionJournal := journal.New(sess.JournalPath)
	if err := sessionJournal.Init(sess.Header(producerVersion)); err != nil {
		return nil, err
	}
	snapshot, err := sessionJournal.Load()
	if err != nil {
		return nil, err
	}
	return &Executor{
		session:         sess,
		backups:         backup.NewStore(sess.RepositoryPath, sess.BackupDirectory, sess.ID),
		journal:         sessionJournal,
		producerVersion: producerVersion,
		nextSequence:    int64(len(snapshot.Operations)) + 1,
	}, nil
}

func (e *Executor) Session() *session.Session {
	return e.session
}

// SafeDelete deletes a file after taking a verified backup. Deleting an
// already-absent path is an idempotent success: no backup, no journal line.
func (e *Executor) SafeDelete(path, reason string) (Result, error) {
	absolute, err := absolutePath(path)
	if err != nil {
		return Result{}, err
	}
	info, statErr := os.Lstat(absolute)
	if os.IsNotExist(statErr) {
		return Result{Changed: false}, nil
	}
	if statErr != nil {
		return Result{}, errors.Wrap(statErr, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("stat %s: %v", absolute, statErr), absolute,
			"check filesystem permissions")
	}
	if !info.Mode().IsRegular() {
		return Result{}, errors.New(errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("refusing to delete non-regular file: %s", absolute), absolute,
			"only regular files are tracked; remove directories and symlinks manually")
	}

	artifact, err := e.backups.CreateBackup(absolute)
	if err != nil {
		return Result{}, err
	}
	if err := os.Remove(absolute); err != nil {
		return Result{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("delete %s: %v", absolute, err), absolute,
			"the file was backed up but not deleted; check permissions and retry")
	}

	record := e.newRecord(cleanup.OperationDelete, absolute, "", artifact, reason)
	return e.logCompleted(record)
}

// SafeRename renames source to destination after taking a verified backup.
// It never overwrites: a missing source or an existing destination fails
// before any side effect. A destination missing after the rename signals
// external filesystem interference and is critical.
func (e *Executor) SafeRename(source, destination, reason string) (Result, error) {
	absSource, err := absolutePath(source)
	if err != nil {
		return Result{}, err
	}
	absDestination, err := absolutePath(destination)
	if err != nil {
		return Result{}, err
	}
	if _, statErr := os.Lstat(absSource); os.IsNotExist(statErr) {
		return Result{}, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("cannot rename non-existent file: %s", absSource), absSource,
			"verify the source path; it may already have been renamed or deleted")
	} else if statErr != nil {
		return Result{}, errors.Wrap(statErr, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("stat %s: %v", absSource, statErr), absSource, "check filesystem permissions")
	}
	if _, statErr := os.Lstat(absDestination); statErr == nil {
		return Result{}, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("rename destination already exists: %s", absDestination), absDestination,
			"choose a different destination or remove the existing file first")
	} else if !os.IsNotExist(statErr) {
		return Result{}, errors.Wrap(statErr, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("stat %s: %v", absDestination, statErr), absDestination, "check filesystem permissions")
	}

	artifact, err := e.backups.CreateBackup(absSource)
	if err != nil {
		return Result{}, err
	}
	if err := os.Rename(absSource, absDestination); err != nil {
		return Result{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("rename %s to %s: %v", absSource, absDestination, err), absSource,
			"the source was backed up but not renamed; check permissions and retry")
	}
	if _, statErr := os.Lstat(absDestination); statErr != nil {
		return Result{}, errors.New(errors.CategoryVerification, errors.SeverityCritical,
			fmt.Sprintf("rename verification failed: %s does not exist after rename", absDestination),
			absDestination,
			"something outside this process altered the filesystem mid-operation; manual intervention required")
	}

	record := e.newRecord(cleanup.OperationRename, absSource, absDestination, artifact, reason)
	return e.logCompleted(record)
}

func (e *Executor) newRecord(
	operationType cleanup.OperationType,
	sourcePath, destinationPath string,
	artifact backup.Artifact,
	reason string,
) cleanup.OperationRecord {
	record := cleanup.OperationRecord{
		CreatedAt:       time.Now().UTC(),
		ProducerVersion: e.producerVersion,
		SessionID:       e.session.ID,
		OperationID:     fmt.Sprintf("%s_%04d", e.session.ID, e.nextSequence),
		Sequence:        e.nextSequence,
		OperationType:   operationType,
		SourcePath:      sourcePath,
		DestinationPath: destinationPath,
		BackupPath:      artifact.BackupPath,
		ContentHash:     artifact.ContentHash,
	}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		record.Metadata = map[string]string{"reason": trimmed}
	}
	return record
}

// logCompleted appends the record for an already-completed mutation. A
// persistence failure here is demoted to a warning: reversing an externally
// visible change because logging failed would itself be unsafe.
func (e *Executor) logCompleted(record cleanup.OperationRecord) (Result, error) {
	appended, err := e.journal.AppendOperation(record)
	if err != nil {
		return Result{Changed: true, Operation: &record, JournalWarning: err.Error()}, nil
	}
	e.nextSequence++
	return Result{Changed: true, Operation: &appended}, nil
}

func absolutePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New(errors.CategoryPrecondition, errors.SeverityError,
			"path is required", "", "pass a file path inside the repository")
	}
	absolute, err := filepath.Abs(trimmed)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("resolve path %s: %v", trimmed, err), trimmed, "use an absolute path")
	}
	return absolute, nil
}

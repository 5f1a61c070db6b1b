// Package session owns the on-disk identity of one cleanup run: the backup
// directory, the session journal path, and the advisory lock that keeps two
// processes from interleaving writes to the same session.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/fsx"
	"github.com/davidahmann/repoclean/core/journal"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
)

const (
	// DefaultBackupDirName is the hidden backup directory under the
	// repository root, overridable via config or flag.
	DefaultBackupDirName = ".repoclean-backups"

	lockStaleAfter = 10 * time.Minute
)

type Session struct {
	ID              string
	RepositoryPath  string
	BackupDirectory string
	JournalPath     string
	CreatedAt       time.Time

	lockPath string
	lockHeld bool
}

// ResolveBackupDir applies the default hidden directory when no override is
// configured. Relative overrides resolve against the repository root.
func ResolveBackupDir(repositoryPath, override string) string {
	trimmed := strings.TrimSpace(override)
	if trimmed == "" {
		return filepath.Join(repositoryPath, DefaultBackupDirName)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Join(repositoryPath, trimmed)
}

// Create starts a fresh session against a repository: collision-resistant
// id, backup directory, and the lifetime advisory lock.
func Create(repositoryPath, backupDirectory string) (*Session, error) {
	resolvedRepo, err := resolveRepository(repositoryPath)
	if err != nil {
		return nil, err
	}
	directory := ResolveBackupDir(resolvedRepo, backupDirectory)
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("create backup directory %s: %v", directory, err), directory,
			"check write permissions on the repository root")
	}
	id := uuid.NewString()
	sess := &Session{
		ID:              id,
		RepositoryPath:  resolvedRepo,
		BackupDirectory: directory,
		JournalPath:     JournalPath(directory, id),
		CreatedAt:       time.Now().UTC(),
		lockPath:        lockPath(directory, id),
	}
	if err := sess.acquireLock(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Attach reopens a persisted session by id so a later process can run
// status or rollback against it. The session's journal must exist.
func Attach(repositoryPath, backupDirectory, sessionID string) (*Session, error) {
	resolvedRepo, err := resolveRepository(repositoryPath)
	if err != nil {
		return nil, err
	}
	directory := ResolveBackupDir(resolvedRepo, backupDirectory)
	trimmedID := strings.TrimSpace(sessionID)
	if trimmedID == "" {
		return nil, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			"session id is required", directory, "pass --session or run a cleanup first")
	}
	journalFile := JournalPath(directory, trimmedID)
	if _, statErr := os.Stat(journalFile); statErr != nil {
		return nil, errors.New(errors.CategoryNotFound, errors.SeverityError,
			fmt.Sprintf("unknown session %s: no journal at %s", trimmedID, journalFile),
			journalFile, "list sessions with 'repoclean status' or check the backup directory")
	}
	sess := &Session{
		ID:              trimmedID,
		RepositoryPath:  resolvedRepo,
		BackupDirectory: directory,
		JournalPath:     journalFile,
		CreatedAt:       time.Now().UTC(),
		lockPath:        lockPath(directory, trimmedID),
	}
	if err := sess.acquireLock(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Latest returns the most recently written session id in the backup
// directory, or empty when none exist.
func Latest(backupDirectory string) (string, error) {
	entries, err := os.ReadDir(backupDirectory)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("enumerate backup directory %s: %v", backupDirectory, err), backupDirectory,
			"check the backup directory is readable")
	}
	latestID := ""
	var latestTime time.Time
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if latestID == "" || info.ModTime().After(latestTime) {
			latestID = strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".jsonl")
			latestTime = info.ModTime()
		}
	}
	return latestID, nil
}

// Header builds the journal header line for this session.
func (s *Session) Header(producerVersion string) cleanup.SessionHeader {
	return cleanup.SessionHeader{
		CreatedAt:       s.CreatedAt,
		ProducerVersion: producerVersion,
		SessionID:       s.ID,
		RepositoryPath:  s.RepositoryPath,
		BackupDirectory: s.BackupDirectory,
		JournalPath:     s.JournalPath,
	}
}

// Summary reloads the journal and reports the session state, including
// operations written by prior processes.
func (s *Session) Summary() (cleanup.SessionSummary, error) {
	snapshot, err := journal.New(s.JournalPath).Load()
	if err != nil {
		return cleanup.SessionSummary{}, err
	}
	operations := append([]cleanup.OperationRecord{}, snapshot.Operations...)
	return cleanup.SessionSummary{
		SessionID:       s.ID,
		RepositoryPath:  s.RepositoryPath,
		BackupDirectory: s.BackupDirectory,
		OperationCount:  len(operations),
		Operations:      operations,
		JournalPath:     s.JournalPath,
	}, nil
}

// Close releases the lifetime lock. Safe to call more than once.
func (s *Session) Close() error {
	if !s.lockHeld {
		return nil
	}
	s.lockHeld = false
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityWarning,
			fmt.Sprintf("release session lock %s: %v", s.lockPath, err), s.lockPath,
			"remove the lock file manually if it persists")
	}
	return nil
}

func (s *Session) acquireLock() error {
	for attempt := 0; attempt < 2; attempt++ {
		// #nosec G304 -- lock path is derived from the session's own directory.
		lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = lockFile.Close()
			s.lockHeld = true
			metadata := map[string]any{
				"schema_id":  "repoclean.cleanup.session_lock",
				"pid":        os.Getpid(),
				"created_at": time.Now().UTC().Format(time.RFC3339),
			}
			// The O_EXCL create is the acquisition; the metadata lands with an
			// atomic replace so a concurrent staleness probe never reads a
			// partially written record.
			if encoded, marshalErr := json.Marshal(metadata); marshalErr == nil {
				_ = fsx.WriteFileAtomic(s.lockPath, append(encoded, '\n'), 0o600)
			}
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
				fmt.Sprintf("acquire session lock %s: %v", s.lockPath, err), s.lockPath,
				"check write permissions on the backup directory")
		}
		if lockLooksStale(s.lockPath, time.Now().UTC()) {
			_ = os.Remove(s.lockPath)
			continue
		}
		return errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("session %s is locked by another process", s.ID), s.lockPath,
			"wait for the other repoclean invocation to finish, or remove the lock file if it is stale")
	}
	return errors.New(errors.CategoryFileSystem, errors.SeverityError,
		fmt.Sprintf("could not acquire session lock %s", s.lockPath), s.lockPath,
		"remove the lock file manually and retry")
}

func lockLooksStale(path string, now time.Time) bool {
	// #nosec G304 -- lock path is derived from the session's own directory.
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var metadata struct {
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(content, &metadata); err != nil {
		return false
	}
	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(metadata.CreatedAt))
	if err != nil {
		return false
	}
	return now.Sub(createdAt) > lockStaleAfter
}

func JournalPath(backupDirectory, sessionID string) string {
	return filepath.Join(backupDirectory, "session-"+sessionID+".jsonl")
}

func lockPath(backupDirectory, sessionID string) string {
	return filepath.Join(backupDirectory, "session-"+sessionID+".lock")
}

func resolveRepository(repositoryPath string) (string, error) {
	absolute, err := filepath.Abs(repositoryPath)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("resolve repository path %s: %v", repositoryPath, err), repositoryPath,
			"use an absolute repository path")
	}
	info, err := os.Stat(absolute)
	if err != nil || !info.IsDir() {
		return "", errors.New(errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("repository path is not a directory: %s", absolute), absolute,
			"point --repo at the root of the repository to clean")
	}
	return absolute, nil
}

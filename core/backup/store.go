// Package backup produces content-verified copies of files before they are
// mutated and restores them during rollback. An artifact is never trusted on
// faith: creation compares source and copy hashes, restore recomputes the
// hash of what landed on disk.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/fsx"
)

type Store struct {
	repositoryPath string
	directory      string
	sessionID      string

	// copyFile is swapped in tests to simulate a copy that lands corrupted.
	copyFile func(sourcePath, destinationPath string) error
}

type Artifact struct {
	BackupPath  string `json:"backup_path"`
	ContentHash string `json:"content_hash"`
}

func NewStore(repositoryPath, directory, sessionID string) *Store {
	return &Store{
		repositoryPath: repositoryPath,
		directory:      directory,
		sessionID:      sessionID,
		copyFile:       fsx.CopyPreserve,
	}
}

// CreateBackup copies sourcePath into the backup directory under a
// deterministic session-scoped name and verifies the copy hash against the
// source hash. On mismatch the copy is removed and an integrity error is
// returned; the caller must not mutate the source.
func (s *Store) CreateBackup(sourcePath string) (Artifact, error) {
	info, err := os.Lstat(sourcePath)
	if os.IsNotExist(err) {
		return Artifact{}, errors.New(
			errors.CategoryFileSystem,
			errors.SeverityError,
			fmt.Sprintf("cannot back up non-existent file: %s", sourcePath),
			sourcePath,
			"verify the path is correct and the file was not already removed",
		)
	}
	if err != nil {
		return Artifact{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("stat backup source %s: %v", sourcePath, err), sourcePath,
			"check filesystem permissions and mount status")
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, errors.New(
			errors.CategoryFileSystem,
			errors.SeverityError,
			fmt.Sprintf("backup source is not a regular file: %s", sourcePath),
			sourcePath,
			"only regular files are tracked; directories and symlinks are skipped",
		)
	}

	backupPath, err := s.ArtifactPath(sourcePath)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(s.directory, 0o750); err != nil {
		return Artifact{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("create backup directory %s: %v", s.directory, err), s.directory,
			"check write permissions on the repository root")
	}
	if err := s.copyFile(sourcePath, backupPath); err != nil {
		return Artifact{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("create backup for %s: %v", sourcePath, err), sourcePath,
			"check available disk space and backup directory permissions")
	}

	sourceHash, err := HashFile(sourcePath)
	if err != nil {
		return Artifact{}, err
	}
	backupHash, err := HashFile(backupPath)
	if err != nil {
		return Artifact{}, err
	}
	if sourceHash != backupHash {
		_ = os.Remove(backupPath)
		return Artifact{}, errors.New(
			errors.CategoryIntegrity,
			errors.SeverityCritical,
			fmt.Sprintf("backup verification failed for %s: expected %s got %s", sourcePath, sourceHash, backupHash),
			sourcePath,
			"the backup is distrusted and was removed; the source was not mutated",
		)
	}
	return Artifact{BackupPath: backupPath, ContentHash: sourceHash}, nil
}

// Restore copies a backup artifact to targetPath. When expectedHash is
// non-empty the restored content is re-hashed and compared.
func (s *Store) Restore(backupPath, targetPath, expectedHash string) error {
	if _, err := os.Lstat(backupPath); os.IsNotExist(err) {
		return errors.New(
			errors.CategoryFileSystem,
			errors.SeverityError,
			fmt.Sprintf("backup artifact missing: %s", backupPath),
			backupPath,
			"the artifact may have been swept or removed manually; check the backup directory",
		)
	} else if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("stat backup artifact %s: %v", backupPath, err), backupPath,
			"check backup directory permissions")
	}
	if err := s.copyFile(backupPath, targetPath); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("restore %s to %s: %v", backupPath, targetPath, err), targetPath,
			"check write permissions on the target location")
	}
	if expectedHash == "" {
		return nil
	}
	restoredHash, err := HashFile(targetPath)
	if err != nil {
		return err
	}
	if restoredHash != expectedHash {
		return errors.New(
			errors.CategoryIntegrity,
			errors.SeverityCritical,
			fmt.Sprintf("restore verification failed for %s: expected %s got %s", targetPath, expectedHash, restoredHash),
			targetPath,
			"the backup artifact no longer matches the recorded hash; manual recovery is required",
		)
	}
	return nil
}

// ArtifactPath builds the deterministic, collision-free backup name for a
// repository file: session id plus the repo-relative path with separators
// flattened.
func (s *Store) ArtifactPath(sourcePath string) (string, error) {
	absolute, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("resolve path %s: %v", sourcePath, err), sourcePath, "use an absolute path")
	}
	relative, err := filepath.Rel(s.repositoryPath, absolute)
	if err != nil || strings.HasPrefix(relative, "..") {
		return "", errors.New(
			errors.CategoryPrecondition,
			errors.SeverityError,
			fmt.Sprintf("path is outside the repository: %s", sourcePath),
			sourcePath,
			"only files under the repository root are tracked",
		)
	}
	flattened := strings.ReplaceAll(filepath.ToSlash(relative), "/", "_")
	return filepath.Join(s.directory, s.sessionID+"_"+flattened), nil
}

// HashFile streams a file through sha256 and returns the hex digest.
func HashFile(path string) (string, error) {
	// #nosec G304 -- hash targets are explicit safety-layer paths.
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("open %s for hashing: %v", path, err), path,
			"check the file exists and is readable")
	}
	defer func() { _ = file.Close() }()
	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("hash %s: %v", path, err), path, "check for disk I/O errors")
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidahmann/repoclean/core/errors"
)

const journalSuffix = ".jsonl"

// SweepOlderThan removes expired backup state from the backup directory and
// returns the number of files removed. Retention treats the session as the
// unit: a session expires when its journal is older than the cutoff, and
// only then are the journal and its artifacts removed. Artifacts owned by a
// live session are kept regardless of age so a valid journal entry never
// references a swept backup. Orphaned artifacts with no surviving journal
// age out individually.
func SweepOlderThan(directory string, maxAgeDays int, now time.Time) (int, error) {
	if maxAgeDays < 0 {
		return 0, errors.New(errors.CategoryPrecondition, errors.SeverityError,
			fmt.Sprintf("invalid retention age: %d days", maxAgeDays), directory,
			"pass a non-negative --max-age-days value")
	}
	entries, err := os.ReadDir(directory)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("enumerate backup directory %s: %v", directory, err), directory,
			"check the backup directory exists and is readable")
	}

	cutoff := now.Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	liveSessions := map[string]bool{}
	for _, entry := range entries {
		sessionID, ok := journalSession(entry.Name())
		if !ok {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			liveSessions[sessionID] = true
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if owner, ok := artifactOwner(entry.Name()); ok && liveSessions[owner] {
			continue
		}
		fullPath := filepath.Join(directory, entry.Name())
		if err := os.Remove(fullPath); err != nil {
			return removed, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
				fmt.Sprintf("remove expired backup file %s: %v", fullPath, err), fullPath,
				"check write permissions on the backup directory")
		}
		removed++
	}
	return removed, nil
}

func journalSession(name string) (string, bool) {
	if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, journalSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, "session-"), journalSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// artifactOwner extracts the session id prefix from an artifact name. Session
// ids are UUIDs and never contain underscores, so the first underscore
// separates the owner from the flattened relative path.
func artifactOwner(name string) (string, bool) {
	if strings.HasPrefix(name, "session-") {
		return "", false
	}
	index := strings.Index(name, "_")
	if index <= 0 {
		return "", false
	}
	return name[:index], true
}

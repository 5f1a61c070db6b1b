// Package fsx holds the low-level filesystem discipline shared by the
// backup store and the journal: atomic replaces, fsynced locked appends,
// and metadata-preserving copies.
package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic writes content to a sibling temp file, fsyncs it, and
// renames it over path so readers never observe a partial file.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	base := filepath.Base(path)

	tempFile, err := os.CreateTemp(parent, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return fmt.Errorf("rename temp file: %w", err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove destination before rename: %w", removeErr)
		}
		if renameErr := os.Rename(tempPath, path); renameErr != nil {
			return fmt.Errorf("rename temp file after remove: %w", renameErr)
		}
	}
	cleanup = false

	syncDirectory(parent)
	return nil
}

// CopyPreserve copies a regular file to destination, fsyncs the copy, and
// carries over the source mode and modification time. The destination is
// truncated if it already exists.
func CopyPreserve(sourcePath, destinationPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat copy source: %w", err)
	}
	if !sourceInfo.Mode().IsRegular() {
		return fmt.Errorf("copy source is not a regular file: %s", sourcePath)
	}

	// #nosec G304 -- source path is an explicit caller-provided file.
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open copy source: %w", err)
	}
	defer func() { _ = source.Close() }()

	// #nosec G304 -- destination path is an explicit caller-provided file.
	destination, err := os.OpenFile(destinationPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("open copy destination: %w", err)
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		return fmt.Errorf("copy content: %w", err)
	}
	if err := destination.Sync(); err != nil {
		_ = destination.Close()
		return fmt.Errorf("sync copy destination: %w", err)
	}
	if err := destination.Close(); err != nil {
		return fmt.Errorf("close copy destination: %w", err)
	}
	if err := os.Chtimes(destinationPath, sourceInfo.ModTime(), sourceInfo.ModTime()); err != nil {
		return fmt.Errorf("preserve copy mtime: %w", err)
	}
	syncDirectory(filepath.Dir(destinationPath))
	return nil
}

func syncDirectory(dir string) {
	if dir == "" || dir == "." {
		return
	}
	// #nosec G304 -- directory path is derived from an explicit destination path.
	if handle, err := os.Open(dir); err == nil {
		_ = handle.Sync()
		_ = handle.Close()
	}
}

package utils

import (
	"crypto/sha256"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// CopyFile copies a file from a source path to a destination path, retaining its permissions.
func CopyFile(sourcePath string, targetPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if sourceInfo.IsDir() {
		return errors.Errorf("could not copy file from '%s' to '%s' because the source path refers to a directory", sourcePath, targetPath)
	}

	if err = os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return errors.WithStack(err)
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	targetFile, err := os.Create(targetPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer targetFile.Close()

	if _, err = io.Copy(targetFile, sourceFile); err != nil {
		return errors.WithStack(err)
	}
	return os.Chmod(targetPath, sourceInfo.Mode())
}

// CopyDirectory copies a directory from a source path to a destination path. If recursively is set, subdirectories
// are copied as well, otherwise only the files directly within the directory are.
func CopyDirectory(sourcePath string, targetPath string, recursively bool) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if !sourceInfo.IsDir() {
		return errors.Errorf("could not copy directory from '%s' to '%s' because the source path does not refer to a valid directory", sourcePath, targetPath)
	}

	if err = os.MkdirAll(targetPath, sourceInfo.Mode()); err != nil {
		return errors.WithStack(err)
	}

	dirEntries, err := os.ReadDir(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, dirEntry := range dirEntries {
		entSourcePath := filepath.Join(sourcePath, dirEntry.Name())
		entTargetPath := filepath.Join(targetPath, dirEntry.Name())
		if dirEntry.IsDir() {
			if recursively {
				if err = CopyDirectory(entSourcePath, entTargetPath, recursively); err != nil {
					return err
				}
			}
			continue
		}
		if err = CopyFile(entSourcePath, entTargetPath); err != nil {
			return err
		}
	}
	return nil
}

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
func MakeDirectory(dirToMake string) error {
	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithStack(os.MkdirAll(dirToMake, 0755))
		}
		return errors.WithStack(err)
	}
	if !dirInfo.IsDir() {
		return errors.Errorf("there is a file with the same name as %s", dirToMake)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// GetFileNameWithoutExtension obtains a filename without the extension. This does not contain any preceding directory
// paths.
func GetFileNameWithoutExtension(filePath string) string {
	return GetFilePathWithoutExtension(filepath.Base(filePath))
}

// GetFilePathWithoutExtension obtains a file path without the extension. This retains all preceding directory paths.
func GetFilePathWithoutExtension(filePath string) string {
	return filePath[:len(filePath)-len(filepath.Ext(filePath))]
}

// HashPath computes a SHA-256 digest over the file at path, or over every regular file below it (in lexical order,
// relative names included) if path is a directory. Entries whose base name is listed in skipDirs are not visited.
func HashPath(path string, skipDirs ...string) ([]byte, error) {
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(files)

	hasher := sha256.New()
	for _, file := range files {
		rel, err := filepath.Rel(path, file)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		hasher.Write([]byte(filepath.ToSlash(rel)))
		hasher.Write([]byte{0})

		f, err := os.Open(file)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		_, err = io.Copy(hasher, f)
		f.Close()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return hasher.Sum(nil), nil
}

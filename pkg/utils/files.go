package utils

import "path/filepath"

// GetPathInfo resolves relPath against the working directory and returns the
// cleaned absolute path together with the directory that contains it.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// CanonicalPath is the form in which file names are compared: absolute and
// cleaned when that is possible, the cleaned input otherwise.
func CanonicalPath(path string) string {
	if path == "" {
		return ""
	}
	full, _, err := GetPathInfo(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return full
}

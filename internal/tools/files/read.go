// Package files implements sandboxed workspace file operations shared by
// the read_file, write_file, list_files, and delete_file tool handlers.
package files

import (
	"io"
	"os"
)

const defaultMaxReadBytes = 200_000

// Read returns up to maxBytes (or defaultMaxReadBytes if maxBytes <= 0)
// bytes of path starting at offset, resolved against root. truncated
// reports whether more data remained past the returned slice.
func Read(root, path string, offset int64, maxBytes int) (content string, truncated bool, err error) {
	resolved, err := (Resolver{Root: root}).Resolve(path)
	if err != nil {
		return "", false, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return "", false, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", false, err
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return "", false, err
		}
	}

	limit := maxBytes
	if limit <= 0 {
		limit = defaultMaxReadBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return "", false, err
	}

	truncated = info.Size() > 0 && offset+int64(len(buf)) < info.Size()
	return string(buf), truncated, nil
}

// List returns the sorted names of entries under dir, directories suffixed
// with "/". A non-existent directory returns an empty list, not an error.
func List(root, dir string) ([]string, error) {
	resolved, err := (Resolver{Root: root}).Resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}

// Delete removes path, whether a file or directory, resolved against root.
func Delete(root, path string) error {
	resolved, err := (Resolver{Root: root}).Resolve(path)
	if err != nil {
		return err
	}
	return os.RemoveAll(resolved)
}

package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileFunc receives each regular file discovered under a root.
type FileFunc func(path string, info fs.FileInfo) error

// Walk traverses root depth-first using an explicit directory stack, so
// arbitrarily deep trees cannot exhaust goroutine stack space. Hidden entries
// and symlinks are skipped; unreadable directories are skipped, not fatal.
func Walk(ctx context.Context, root string, fn FileFunc) error {
	stack := []string{root}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == root {
				return err
			}
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			name := entry.Name()
			if len(name) > 0 && name[0] == '.' {
				continue
			}
			path := filepath.Join(dir, name)
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			if entry.Type()&fs.ModeSymlink != 0 {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
			if err := fn(path, info); err != nil {
				return err
			}
		}
	}
	return nil
}

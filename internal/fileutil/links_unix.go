//go:build unix

package fileutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SameInode reports whether a and b are hard links to the same file.
func SameInode(a, b string) (bool, error) {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	if err := unix.Stat(b, &sb); err != nil {
		return false, fmt.Errorf("stat %s: %w", b, err)
	}
	return sa.Dev == sb.Dev && sa.Ino == sb.Ino, nil
}

// LinkCount returns the number of hard links pointing at path's inode.
func LinkCount(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(st.Nlink), nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

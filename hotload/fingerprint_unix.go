//go:build unix

package hotload

import "golang.org/x/sys/unix"

// fileIdentity returns the inode and device numbers of path. A rebuild that
// writes a new file and renames it over the old one changes the inode even
// when the timestamp does not.
func fileIdentity(path string) (ino, dev uint64, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	return uint64(st.Ino), uint64(st.Dev), nil //nolint:unconvert // Dev width is platform dependent
}

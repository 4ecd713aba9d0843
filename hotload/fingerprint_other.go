//go:build !unix

package hotload

// fileIdentity has no inode equivalent here; fingerprints rely on
// modification time and size.
func fileIdentity(string) (ino, dev uint64, err error) {
	return 0, 0, nil
}

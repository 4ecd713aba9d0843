package hotload

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNotRegular is returned by Stat when the module path is not a regular file.
var ErrNotRegular = errors.New("hotload: module path is not a regular file")

// Fingerprint identifies one build of a module file. Two fingerprints of the
// same path differ when the file was rewritten or replaced.
//
// Modification time alone can miss a rebuild that lands within the file
// system's timestamp granularity, so size and (on unix) the inode and
// device are part of the identity. A rebuild that keeps all four equal is
// still missed.
type Fingerprint struct {
	ModTime int64 // nanoseconds since the Unix epoch
	Size    int64
	Inode   uint64
	Device  uint64
}

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Time returns the modification time.
func (f Fingerprint) Time() time.Time {
	return time.Unix(0, f.ModTime)
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("mtime=%s size=%d ino=%d dev=%d",
		f.Time().Format(time.RFC3339Nano), f.Size, f.Inode, f.Device)
}

// Stat computes the fingerprint of the file at path.
func Stat(path string) (Fingerprint, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	if !fi.Mode().IsRegular() {
		return Fingerprint{}, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	ino, dev, err := fileIdentity(path)
	if err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{
		ModTime: fi.ModTime().UnixNano(),
		Size:    fi.Size(),
		Inode:   ino,
		Device:  dev,
	}, nil
}

package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrBadFileName = errors.New("region: file name is not r.<x>.<z>.mca")

// FileName returns the conventional name of the region file at (x, z).
func FileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

// ParseFileName extracts region coordinates from a file name such as
// "r.-1.3.mca". Directory components are ignored.
func ParseFileName(name string) (x, z int, err error) {
	base := filepath.Base(name)
	var ext string
	if n, _ := fmt.Sscanf(base, "r.%d.%d.%s", &x, &z, &ext); n != 3 || ext != "mca" {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadFileName, base)
	}
	// Sscanf accepts "r.1.2.mca" but also "r.+1.2.mca"; require canonical form.
	if FileName(x, z) != base {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadFileName, base)
	}
	return x, z, nil
}

// Open reads the region file at path, taking its coordinates from the file
// name. See Read for how per-chunk errors are reported.
func Open(path string) (*Region, error) {
	x, z, err := ParseFileName(path)
	if err != nil {
		return nil, err
	}
	return OpenAt(path, x, z)
}

// OpenAt reads the region file at path as region (x, z).
func OpenAt(path string, x, z int) (*Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file, x, z)
}

// Save writes the region to path. The data goes to a temporary file in the
// same directory which then replaces path, so an interrupted save leaves the
// previous file intact.
func (r *Region) Save(path string, timestamp uint32) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = r.Write(tmp, timestamp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

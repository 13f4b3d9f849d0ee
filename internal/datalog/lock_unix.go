//go:build unix

package datalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an advisory flock on a sidecar file. The log itself is replaced
// by rename during rotation, so locking its inode would not exclude anyone.
type fileLock struct {
	file *os.File
}

// acquireLock takes the sidecar lock. Writers create the lock file; readers
// open it read-only and skip locking when no writer has ever created it.
func acquireLock(path string, exclusive bool) (*fileLock, error) {
	flag, how := os.O_RDONLY, unix.LOCK_SH
	if exclusive {
		flag, how = os.O_RDWR|os.O_CREATE, unix.LOCK_EX
	}
	file, err := os.OpenFile(path, flag, filePerm)
	if !exclusive && errors.Is(err, fs.ErrNotExist) {
		return &fileLock{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	for {
		err = unix.Flock(int(file.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() {
	if l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
}

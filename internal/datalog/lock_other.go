//go:build !unix

package datalog

type fileLock struct{}

// acquireLock is a no-op where flock is unavailable.
func acquireLock(string, bool) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) release() {}

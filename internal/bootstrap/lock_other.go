// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package bootstrap

// runLock is the non-Linux stub. The device target is Linux; on a
// development laptop the engine runs inside a VM and the bootstrap is a
// single-terminal workflow, so the cross-process guard is not provided.
type runLock struct{}

// acquireRunLock always succeeds off Linux.
func acquireRunLock() (*runLock, error) {
	return &runLock{}, nil
}

// acquireRunLockAt always succeeds off Linux.
func acquireRunLockAt(string) (*runLock, error) {
	return &runLock{}, nil
}

// Release is a no-op off Linux.
func (l *runLock) Release() {}

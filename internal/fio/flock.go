package fio

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".kvengine-lock"

// NewFlock builds an advisory lock on dirPath so that at most one Store
// can have the directory open at a time.
func NewFlock(dirPath string) *flock.Flock {
	return flock.New(filepath.Join(dirPath, lockFileName))
}

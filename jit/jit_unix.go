//go:build unix

package jit

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Copy code into a fresh anonymous mapping, then remap it read-execute. The mapping is never
// writable and executable at the same time.
func Load(code []byte) (*Page, error) {
	if len(code) == 0 {
		return nil, errors.New("No code to load")
	}
	pageSize := os.Getpagesize()
	size := (len(code) + pageSize - 1) &^ (pageSize - 1)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "sys/unix.Mmap failed")
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(err, "sys/unix.Mprotect failed")
	}
	return &Page{mem: mem, size: len(code)}, nil
}

// Unmap the page. Functions bound to the page must not be called afterwards.
func (p *Page) Close() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return errors.Wrap(err, "sys/unix.Munmap failed")
}

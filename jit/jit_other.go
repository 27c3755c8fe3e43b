//go:build !unix

package jit

import (
	"github.com/pkg/errors"
)

var errUnsupported = errors.New("Executable memory is unsupported on this platform")

func Load(code []byte) (*Page, error) { return nil, errUnsupported }

func (p *Page) Close() error { return nil }

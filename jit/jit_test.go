//go:build linux && amd64

package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/wdamron/x64code"
)

func compile(t *testing.T, build func(c *Code)) []byte {
	t.Helper()
	c := New()
	build(c)
	b, err := c.Compile()
	require.NoError(t, err)
	return b
}

func TestReturnConstant(t *testing.T) {
	b := compile(t, func(c *Code) {
		c.Inst("mov", EAX, 25)
		c.ZeroOperands("ret")
	})

	page, err := Load(b)
	require.NoError(t, err)
	defer page.Close()

	assert.Equal(t, b, page.Bytes())
	assert.Equal(t, len(b), page.Len())
	assert.Zero(t, page.Cap()%4096)

	var f func() int
	require.NoError(t, page.Func(&f))
	assert.Equal(t, 25, f())
}

func TestSum(t *testing.T) {
	// integer arguments arrive in RAX, RBX, ... and the result is returned in RAX
	b := compile(t, func(c *Code) {
		c.Inst("add", RAX, RBX)
		c.ZeroOperands("ret")
	})

	page, err := Load(b)
	require.NoError(t, err)
	defer page.Close()

	var sum func(a, b int) int
	require.NoError(t, page.Func(&sum))
	for i := -5; i <= 5; i++ {
		for j := -5; j <= 5; j++ {
			if s := sum(i, j); s != i+j {
				t.Fatalf("sum(%v, %v) = %v", i, j, s)
			}
		}
	}
}

func TestLoop(t *testing.T) {
	// sum of 1..n
	b := compile(t, func(c *Code) {
		c.Inst("xor", ECX, ECX)
		top, _ := c.Label("top")
		c.Inst("add", RCX, RAX)
		c.Inst("dec", RAX)
		c.Jcc(CCNeq, top.Rel8())
		c.Inst("mov", RAX, RCX)
		c.ZeroOperands("ret")
	})

	page, err := Load(b)
	require.NoError(t, err)
	defer page.Close()

	var triangle func(n int) int
	require.NoError(t, page.Func(&triangle))
	assert.Equal(t, 55, triangle(10))
	assert.Equal(t, 5050, triangle(100))
}

func TestClose(t *testing.T) {
	page, err := Load([]byte{0xc3})
	require.NoError(t, err)
	require.NoError(t, page.Close())
	require.NoError(t, page.Close())
	assert.Nil(t, page.Bytes())

	var f func()
	assert.Error(t, page.Func(&f))
}

func TestLoadEmpty(t *testing.T) {
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestSetFunctionCodeInvalid(t *testing.T) {
	var f func()
	assert.Error(t, SetFunctionCode(f, []byte{0xc3}))
	assert.Error(t, SetFunctionCode(new(int), []byte{0xc3}))
	assert.Error(t, SetFunctionCode(&f, nil))
}

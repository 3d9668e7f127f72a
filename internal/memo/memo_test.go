package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(nil)
	require.NoError(t, err)
	return c
}

func TestDoHitOnIdenticalBytes(t *testing.T) {
	c := newCache(t)
	var calls int
	fn := func() (int, error) { calls++; return 42, nil }

	v, hit, err := Do(c, "extract", "slides", []byte("deck"), fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	// 不同切片、相同字节
	v, hit, err = Do(c, "extract", "slides", append([]byte(nil), "deck"...), fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestDoMissOnChange(t *testing.T) {
	c := newCache(t)
	var calls int
	fn := func() (string, error) { calls++; return "x", nil }

	_, _, _ = Do(c, "extract", "slides", []byte("deck"), fn)
	_, hit, _ := Do(c, "extract", "slides", []byte("deck!"), fn)
	assert.False(t, hit, "字节变化")
	_, hit, _ = Do(c, "extract", "document", []byte("deck"), fn)
	assert.False(t, hit, "选项变化")
	_, hit, _ = Do(c, "index", "slides", []byte("deck"), fn)
	assert.False(t, hit, "操作变化")
	assert.Equal(t, 4, calls)
}

func TestDoErrorsNotCached(t *testing.T) {
	c := newCache(t)
	boom := errors.New("boom")
	var calls int
	_, _, err := Do(c, "op", "", []byte("a"), func() (int, error) { calls++; return 0, boom })
	require.ErrorIs(t, err, boom)
	v, hit, err := Do(c, "op", "", []byte("a"), func() (int, error) { calls++; return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestDoTypeMismatchIsMiss(t *testing.T) {
	c := newCache(t)
	_, _, _ = DoKey(c, "k", func() (int, error) { return 1, nil })
	s, hit, err := DoKey(c, "k", func() (string, error) { return "s", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "s", s)
}

func TestClear(t *testing.T) {
	c := newCache(t)
	d, _ := c.Intern([]byte("png"))
	_, _, _ = Do(c, "op", "", []byte("a"), func() (int, error) { return 1, nil })
	nb, nd := c.Len()
	assert.Equal(t, 1, nb)
	assert.Equal(t, 1, nd)

	c.ClearDerived()
	_, ok := c.Blob(d)
	assert.True(t, ok, "ClearDerived 不影响 Blobs")
	_, hit, _ := Do(c, "op", "", []byte("a"), func() (int, error) { return 1, nil })
	assert.False(t, hit)

	c.ClearAll()
	nb, nd = c.Len()
	assert.Zero(t, nb)
	assert.Zero(t, nd)
}

func TestIntern(t *testing.T) {
	c := newCache(t)
	a := []byte("same")
	b := []byte("same")
	da, ca := c.Intern(a)
	db, cb := c.Intern(b)
	assert.Equal(t, da, db)
	assert.Equal(t, Digest([]byte("same")), da)
	assert.Same(t, &ca[0], &cb[0], "相同内容共享首个登记的切片")
	got, ok := c.Blob(da)
	require.True(t, ok)
	assert.Equal(t, "same", string(got))
}

func TestCapacity(t *testing.T) {
	c, err := New(&Options{DerivedEntries: 1})
	require.NoError(t, err)
	_, _, _ = Do(c, "op", "", []byte("a"), func() (int, error) { return 1, nil })
	_, _, _ = Do(c, "op", "", []byte("b"), func() (int, error) { return 2, nil })
	_, hit, _ := Do(c, "op", "", []byte("a"), func() (int, error) { return 1, nil })
	assert.False(t, hit, "LRU 淘汰")
}

func TestDoConcurrentCollapse(t *testing.T) {
	c := newCache(t)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := Do(c, "slow", "", []byte("x"), func() (int, error) {
				calls.Add(1)
				<-release
				return 9, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 9, v)
		}()
	}
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	_, hit, _ := Do(c, "slow", "", []byte("x"), func() (int, error) { return 0, nil })
	assert.True(t, hit)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "expand|v1|a|b", Key("expand", "v1", "a", "b"))
	assert.Equal(t, "op|", Key("op", ""))
}

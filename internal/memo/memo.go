// Package memo 提供按内容摘要寻址的两级缓存：原始字节（Blobs）与派生结果（Derived）。
// 键 = 操作名 + 选项指纹 + 输入字节的 SHA-256；相同字节必命中，任一字节变化必不命中。
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"admatch/internal/diag"
)

const (
	defaultBlobEntries    = 4096
	defaultDerivedEntries = 256
)

// Options 为缓存容量配置（条目数）。
type Options struct {
	BlobEntries    int `json:"blob_entries"`
	DerivedEntries int `json:"derived_entries"`
}

// Cache 并发安全；派生结果以只读方式共享，调用方不得修改。
type Cache struct {
	blobs   *lru.Cache[string, []byte]
	derived *lru.Cache[string, any]
	group   singleflight.Group
}

// New 创建缓存；容量 <=0 使用默认值。
func New(opts *Options) (*Cache, error) {
	nb, nd := defaultBlobEntries, defaultDerivedEntries
	if opts != nil {
		if opts.BlobEntries > 0 {
			nb = opts.BlobEntries
		}
		if opts.DerivedEntries > 0 {
			nd = opts.DerivedEntries
		}
	}
	blobs, err := lru.New[string, []byte](nb)
	if err != nil {
		return nil, err
	}
	derived, err := lru.New[string, any](nd)
	if err != nil {
		return nil, err
	}
	return &Cache{blobs: blobs, derived: derived}, nil
}

// Digest 返回 data 的十六进制 SHA-256。
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key 组合派生缓存键。
func Key(op, variant string, digests ...string) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('|')
	b.WriteString(variant)
	for _, d := range digests {
		b.WriteByte('|')
		b.WriteString(d)
	}
	return b.String()
}

// Intern 以摘要登记原始字节；已存在时返回先前登记的切片（相同内容共享一份）。
func (c *Cache) Intern(data []byte) (string, []byte) {
	d := Digest(data)
	if prev, ok := c.blobs.Get(d); ok {
		diag.IncCache("blobs", "hit")
		return d, prev
	}
	diag.IncCache("blobs", "miss")
	c.blobs.Add(d, data)
	return d, data
}

// Blob 按摘要取回原始字节。
func (c *Cache) Blob(digest string) ([]byte, bool) { return c.blobs.Get(digest) }

// Do 对 input 字节执行 fn 并缓存结果；hit 表示结果来自缓存。
func Do[T any](c *Cache, op, variant string, input []byte, fn func() (T, error)) (T, bool, error) {
	return DoKey(c, Key(op, variant, Digest(input)), fn)
}

// DoKey 同 Do，但由调用方给出完整键（多输入时使用）。
// 错误不缓存；并发的相同键只计算一次。
func DoKey[T any](c *Cache, key string, fn func() (T, error)) (T, bool, error) {
	if v, ok := c.derived.Get(key); ok {
		if t, ok := v.(T); ok {
			diag.IncCache("derived", "hit")
			return t, true, nil
		}
	}
	diag.IncCache("derived", "miss")
	v, err, _ := c.group.Do(key, func() (any, error) {
		t, err := fn()
		if err != nil {
			return t, err
		}
		c.derived.Add(key, t)
		return t, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// ClearBlobs 清空原始字节缓存。
func (c *Cache) ClearBlobs() { c.blobs.Purge() }

// ClearDerived 清空派生结果缓存。
func (c *Cache) ClearDerived() { c.derived.Purge() }

// ClearAll 清空两级缓存，下一次调用将完整重算。
func (c *Cache) ClearAll() {
	c.ClearBlobs()
	c.ClearDerived()
}

// Len 返回两级缓存的当前条目数。
func (c *Cache) Len() (blobs, derived int) { return c.blobs.Len(), c.derived.Len() }

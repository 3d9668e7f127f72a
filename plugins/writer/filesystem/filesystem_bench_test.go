package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"admatch/pkg/contract"
)

// BenchmarkWrite 不同尺寸快照的写入开销（原子与直写）。
func BenchmarkWrite(b *testing.B) {
	for _, sz := range []int{4 << 10, 4 << 20} {
		for _, atomic := range []bool{true, false} {
			b.Run(fmt.Sprintf("size=%d/atomic=%v", sz, atomic), func(b *testing.B) {
				data := bytes.Repeat([]byte("a"), sz)
				a := atomic
				w, err := New(&Options{OutputDir: b.TempDir(), Atomic: &a})
				if err != nil {
					b.Fatalf("new: %v", err)
				}
				id := contract.ArtifactID("snapshot.zip")
				b.SetBytes(int64(sz))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := w.Write(context.Background(), id, bytes.NewReader(data)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

package substring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admatch/pkg/contract"
)

func assets(names ...string) []contract.Asset {
	out := make([]contract.Asset, len(names))
	for i, n := range names {
		out[i] = contract.NewAsset(n, nil)
	}
	return out
}

func TestMatchSubstring(t *testing.T) {
	as := assets("12345678_banner.png", "spot-87654321.mp4", "misc/12345678_radio.wav", "unrelated.jpg")
	ix, err := New(nil).Match(context.Background(), []contract.AdCode{"12345678", "87654321", "00000000"}, as)
	require.NoError(t, err)

	assert.Equal(t, []string{"12345678_banner.png", "12345678_radio.wav"}, ix.Names("12345678"))
	assert.Equal(t, []string{"spot-87654321.mp4"}, ix.Names("87654321"))

	hits, ok := ix["00000000"]
	assert.True(t, ok, "未命中的码也应有键")
	assert.Empty(t, hits)
	assert.Len(t, ix, 3)
}

func TestMatchKnownFalsePositive(t *testing.T) {
	ix, err := New(nil).Match(context.Background(), []contract.AdCode{"12345678"}, assets("creative_123456789_v2.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"creative_123456789_v2.mp4"}, ix.Names("12345678"))
}

func TestMatchUsesBaseName(t *testing.T) {
	// 目录层级不参与匹配
	ix, err := New(nil).Match(context.Background(), []contract.AdCode{"12345678"}, assets("12345678/clip.mp4"))
	require.NoError(t, err)
	assert.Empty(t, ix.Names("12345678"))
}

func TestMatchCaseInsensitive(t *testing.T) {
	as := assets("AD12345678.PNG")
	codes := []contract.AdCode{"12345678"}

	ix, err := New(&Options{CaseInsensitive: true}).Match(context.Background(), codes, as)
	require.NoError(t, err)
	assert.Equal(t, []string{"AD12345678.PNG"}, ix.Names("12345678"), "原名保留")
}

func TestUnmatched(t *testing.T) {
	as := assets("a_11111111.png", "orphan.mp4", "b_22222222.wav", "logo.svg")
	ix, err := New(nil).Match(context.Background(), []contract.AdCode{"11111111", "22222222"}, as)
	require.NoError(t, err)

	got := Unmatched(ix, as)
	require.Len(t, got, 2)
	assert.Equal(t, "orphan.mp4", got[0].Name)
	assert.Equal(t, "logo.svg", got[1].Name)

	assert.Len(t, Unmatched(contract.AssetIndex{}, as), 4)
}

func TestMatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Match(ctx, []contract.AdCode{"12345678"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkMatch(b *testing.B) {
	codes := make([]contract.AdCode, 200)
	for i := range codes {
		codes[i] = contract.AdCode(fmt.Sprintf("%08d", 10000000+i))
	}
	names := make([]string, 2000)
	for i := range names {
		names[i] = fmt.Sprintf("creative_%08d_v%d.mp4", 10000000+i%400, i)
	}
	as := assets(names...)
	m := New(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(context.Background(), codes, as); err != nil {
			b.Fatal(err)
		}
	}
}

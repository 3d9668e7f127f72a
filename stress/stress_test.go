package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	cfgpkg "admatch/internal/config"
	"admatch/internal/fixture"
	"admatch/internal/pipeline"
)

// baseConfig 构造可运行的最小配置。
func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Output = cfgpkg.Output{CSV: "Ad_List.csv"}
	cfg.Logging.Level = "error"
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":false,"flat":true,"perm_file":0,"perm_dir":0,"buf_size":65536}`, outDir))
	return cfg
}

// writeCorpus 生成 ads 页广告的演示文稿与 assets 个素材（打包为一个 zip）。
func writeCorpus(t *testing.T, dir string, ads, assets int) {
	t.Helper()
	slides := make([]fixture.Slide, ads)
	for i := range slides {
		code := fmt.Sprintf("%08d", 30000000+i)
		slides[i] = fixture.Slide{Shapes: []fixture.Shape{
			{Paragraphs: []string{"Ad Code: " + code, "Brand: Brand " + code, "Media Outlet: Outlet", "Media: TV", "First Run Date: 2024-01-01"}},
			{Paragraphs: []string{"View Ad"}, Link: "https://ads.example/" + code},
		}}
	}
	entries := make([]fixture.Entry, assets)
	for i := range entries {
		// 一半素材命中，另一半使用范围外的码
		entries[i] = fixture.Entry{Name: fmt.Sprintf("batch%d/creative_%08d_v%d.mp4", i%7, 30000000+i%(ads*2), i), Data: []byte{byte(i)}}
	}
	if err := os.WriteFile(filepath.Join(dir, "deck.pptx"), fixture.PPTX(slides), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets.zip"), fixture.Zip(entries...), 0o644); err != nil {
		t.Fatalf("write assets: %v", err)
	}
}

// TestStress 在不同规模下重复运行流水线并记录延迟统计；同一装配内复用缓存。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	levels := []struct{ ads, assets int }{{10, 100}, {100, 1000}, {200, 4000}}
	for _, lv := range levels {
		t.Run(fmt.Sprintf("ads_%d_assets_%d", lv.ads, lv.assets), func(t *testing.T) {
			in := t.TempDir()
			writeCorpus(t, in, lv.ads, lv.assets)
			comp, set, err := cfgpkg.Assemble(baseConfig(in, t.TempDir()))
			if err != nil {
				t.Fatalf("assemble: %v", err)
			}
			const runs = 5
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				start := time.Now()
				res, err := pipeline.Run(context.Background(), comp, set, nil)
				dur := time.Since(start)
				if err != nil {
					t.Fatalf("run %d: %v", i, err)
				}
				if res.Stats.Total != lv.ads {
					t.Fatalf("run %d: total %d want %d", i, res.Stats.Total, lv.ads)
				}
				// 码 i 命中的素材数：i%(ads*2)==i 的下标个数
				if got, want := res.Stats.WithAssets, min(lv.ads, lv.assets); got != want {
					t.Fatalf("run %d: with assets %d want %d", i, got, want)
				}
				latencies = append(latencies, dur)
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			blobs, derived := comp.Cache.Len()
			t.Logf("广告%d 素材%d 最快%v 平均%v 95%%延迟%v 缓存 blobs=%d derived=%d",
				lv.ads, lv.assets, latencies[0], avg, latencies[idx], blobs, derived)
		})
	}
}

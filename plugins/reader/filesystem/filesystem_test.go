package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"admatch/pkg/contract"
)

func collect(t *testing.T, r *FileSystem, roots ...string) ([]string, map[string]string) {
	t.Helper()
	var ids []string
	data := map[string]string{}
	err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.Base(string(id)))
		data[filepath.Base(string(id))] = string(b)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return ids, data
}

// TestIterateSingleFile 读取单文件
func TestIterateSingleFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "deck.pptx")
	os.WriteFile(fp, []byte("hello"), 0o644)
	var got contract.FileID
	err := New(nil).Iterate(context.Background(), []string{fp}, func(id contract.FileID, rc io.ReadCloser) error {
		got = id
		return rc.Close()
	})
	if err != nil || got != contract.NormalizeFileID(fp) {
		t.Fatalf("iterate: %v %q", err, got)
	}
}

// TestIterateOrderAndMetadata 字典序、先目录后文件，元数据跳过
func TestIterateOrderAndMetadata(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b_22222222.png"), []byte("b"), 0o644)
	os.WriteFile(filepath.Join(dir, "a_11111111.png"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("m"), 0o644)
	os.WriteFile(filepath.Join(dir, "._a_11111111.png"), []byte("m"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "deck.pptx"), []byte("d"), 0o644)
	os.Mkdir(filepath.Join(dir, "__MACOSX"), 0o755)
	os.WriteFile(filepath.Join(dir, "__MACOSX", "x.png"), []byte("m"), 0o644)

	ids, data := collect(t, New(nil), dir)
	want := []string{"deck.pptx", "a_11111111.png", "b_22222222.png"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("order: got %v want %v", ids, want)
	}
	if data["a_11111111.png"] != "a" {
		t.Fatalf("content: %q", data["a_11111111.png"])
	}
}

// TestExcludeDir 跳过目录
func TestExcludeDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "keep.png"), []byte("k"), 0o644)
	os.Mkdir(filepath.Join(dir, "Drafts"), 0o755)
	os.WriteFile(filepath.Join(dir, "Drafts", "bad.png"), []byte("b"), 0o644)

	ids, _ := collect(t, New(&Options{ExcludeDirNames: []string{"drafts", ""}}), dir)
	if len(ids) != 1 || ids[0] != "keep.png" {
		t.Fatalf("exclude failed: %#v", ids)
	}
}

// TestMaxFileBytes 超限返回 ErrInvalidInput
func TestMaxFileBytes(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "big.mp4")
	os.WriteFile(fp, []byte("0123456789"), 0o644)
	err := New(&Options{MaxFileBytes: 4}).Iterate(context.Background(), []string{fp}, func(_ contract.FileID, rc io.ReadCloser) error {
		return rc.Close()
	})
	if !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput, got %v", err)
	}
}

// TestYieldErrorStops 回调出错即停止并上抛
func TestYieldErrorStops(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o644)
	boom := errors.New("boom")
	n := 0
	err := New(nil).Iterate(context.Background(), []string{dir}, func(contract.FileID, io.ReadCloser) error {
		n++
		return boom
	})
	if !errors.Is(err, boom) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

// TestIterateDashMix 混用 '-' 返回错误
func TestIterateDashMix(t *testing.T) {
	err := New(nil).Iterate(context.Background(), []string{"-", "a"}, func(contract.FileID, io.ReadCloser) error { return nil })
	if err == nil {
		t.Fatalf("expect error for dash mix")
	}
}

// TestIterateStdin roots 为空或为 '-' 时读取 STDIN
func TestIterateStdin(t *testing.T) {
	for _, roots := range [][]string{nil, {"-"}} {
		old := os.Stdin
		pr, pw, _ := os.Pipe()
		os.Stdin = pr
		go func() {
			pw.Write([]byte("PK"))
			pw.Close()
		}()
		var data []byte
		err := New(nil).Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			if id != "stdin" {
				t.Fatalf("id=%s", id)
			}
			data, _ = io.ReadAll(rc)
			return nil
		})
		os.Stdin = old
		if err != nil || string(data) != "PK" {
			t.Fatalf("stdin %v: %v %q", roots, err, string(data))
		}
	}
}

// TestIterateCtxCancel 上下文取消
func TestIterateCtxCancel(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.png")
	os.WriteFile(fp, []byte("x"), 0o644)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil).Iterate(ctx, []string{fp}, func(contract.FileID, io.ReadCloser) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx cancel, got %v", err)
	}
}

// TestIterateMissingRoot 不存在的根返回错误
func TestIterateMissingRoot(t *testing.T) {
	err := New(nil).Iterate(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, func(contract.FileID, io.ReadCloser) error { return nil })
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expect not exist, got %v", err)
	}
}

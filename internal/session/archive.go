package session

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"admatch/pkg/contract"
)

// 快照包布局。
const (
	SessionFile = "session.json"
	AssetsDir   = "assets/"
)

// maxMemberBytes: 快照成员解压后大小上限，与展开器默认值一致。
var maxMemberBytes int64 = 512 << 20

var errMemberTooLarge = errors.New("archive member exceeds size limit")

// Bundle 为快照包还原出的内容。
type Bundle struct {
	Primary *contract.Upload
	Assets  []contract.Asset
	// Entries: 导入的会话条目数。
	Entries int
}

// ExportArchive 写出完整快照 zip：session.json、主文档（原基名）与 assets/<Path>。
func (s *State) ExportArchive(w io.Writer, primary *contract.Upload, assets []contract.Asset) error {
	doc, err := s.Export()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	put := func(name string, data []byte) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return err
	}
	if err := put(SessionFile, doc); err != nil {
		return err
	}
	if primary != nil {
		if err := put(contract.BaseName(primary.Name), primary.Data); err != nil {
			return err
		}
	}
	// 同 Path 的素材改名保留，不丢弃
	used := make(map[string]bool, len(assets))
	for _, a := range assets {
		rel := a.Path
		if rel == "" {
			rel = a.Name
		}
		rel = contract.UniquePath(used, strings.TrimPrefix(string(contract.NormalizeFileID(rel)), "/"))
		if err := put(AssetsDir+rel, a.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ImportArchive 解析快照 zip 并合并其中的 session.json。
// 包损坏、缺少 session.json 或其内容非法时返回 *contract.ImportError，状态不变。
func (s *State) ImportArchive(data []byte) (Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Bundle{}, &contract.ImportError{Cause: fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)}
	}
	var (
		b       Bundle
		session []byte
		found   bool
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(string(contract.NormalizeFileID(f.Name)), "/")
		if contract.IsPlatformMetadata(name) || name == ".." || strings.HasPrefix(name, "../") {
			continue
		}
		body, err := readMember(f)
		if err != nil {
			return Bundle{}, &contract.ImportError{Key: f.Name, Cause: err}
		}
		switch {
		case name == SessionFile:
			session, found = body, true
		case strings.HasPrefix(name, AssetsDir):
			b.Assets = append(b.Assets, contract.NewAsset(strings.TrimPrefix(name, AssetsDir), body))
		case !strings.Contains(name, "/") && contract.KindFromName(name) != "":
			b.Primary = &contract.Upload{Name: path.Base(name), Data: body}
		}
	}
	if !found {
		return Bundle{}, &contract.ImportError{Key: SessionFile, Cause: fmt.Errorf("%w: missing from archive", contract.ErrInvalidInput)}
	}
	st, err := parseJSON(session)
	if err != nil {
		return Bundle{}, err
	}
	s.merge(st)
	b.Entries = len(st)
	return b, nil
}

// ImportAny 按魔数分派：zip 走 ImportArchive，否则按 JSON 导入。
func (s *State) ImportAny(data []byte) (Bundle, error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte("PK\x05\x06")) {
		return s.ImportArchive(data)
	}
	st, err := parseJSON(data)
	if err != nil {
		return Bundle{}, err
	}
	s.merge(st)
	return Bundle{Entries: len(st)}, nil
}

// readMember 读取成员；解压后超过 maxMemberBytes 返回 errMemberTooLarge。
func readMember(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxMemberBytes) {
		return nil, errMemberTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxMemberBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxMemberBytes {
		return nil, errMemberTooLarge
	}
	return b, nil
}

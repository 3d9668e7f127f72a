package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"admatch/pkg/contract"
)

// metaPrefix: 轻量格式中覆盖键的前缀（meta_<code>）。
const metaPrefix = "meta_"

type entryJSON struct {
	Notes    *string           `json:"notes"`
	Override map[string]string `json:"metadata_override"`
}

// Export 输出结构化 JSON：{"<code>": {"notes": "...", "metadata_override": {...}}}，键有序。
func (s *State) Export() ([]byte, error) {
	snap := s.Snapshot()
	out := make(map[string]entryJSON, len(snap))
	for code, e := range snap {
		notes := e.Notes
		ov := e.Override
		if ov == nil {
			ov = map[string]string{}
		}
		out[string(code)] = entryJSON{Notes: &notes, Override: ov}
	}
	return json.MarshalIndent(out, "", "  ")
}

// ExportFlat 输出轻量格式：{"<code>": "<notes>", "meta_<code>": "<覆盖对象的 JSON 字符串>"}。
// 无覆盖的码不输出 meta_ 键。
func (s *State) ExportFlat() ([]byte, error) {
	snap := s.Snapshot()
	out := make(map[string]string, len(snap)*2)
	for code, e := range snap {
		out[string(code)] = e.Notes
		if len(e.Override) == 0 {
			continue
		}
		b, err := json.Marshal(e.Override)
		if err != nil {
			return nil, err
		}
		out[metaPrefix+string(code)] = string(b)
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import 合并 JSON 快照（结构化与轻量格式均可，可混用）。
// 任一键或值非法返回 *contract.ImportError，状态不变。
func (s *State) Import(data []byte) error {
	st, err := parseJSON(data)
	if err != nil {
		return err
	}
	s.merge(st)
	return nil
}

// parseJSON 将快照完整解析到暂存区；不触碰状态。
func parseJSON(data []byte) (map[contract.AdCode]*staged, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &contract.ImportError{Cause: fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)}
	}
	if raw == nil {
		return nil, &contract.ImportError{Cause: fmt.Errorf("%w: snapshot must be a JSON object", contract.ErrInvalidInput)}
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[contract.AdCode]*staged, len(raw))
	get := func(c contract.AdCode) *staged {
		st, ok := out[c]
		if !ok {
			st = &staged{}
			out[c] = st
		}
		return st
	}
	for _, key := range keys {
		val := bytes.TrimSpace(raw[key])
		if strings.HasPrefix(key, metaPrefix) {
			code, err := contract.ParseCode(strings.TrimPrefix(key, metaPrefix))
			if err != nil {
				return nil, &contract.ImportError{Key: key, Cause: err}
			}
			ov, err := decodeOverride(val)
			if err != nil {
				return nil, &contract.ImportError{Key: key, Cause: err}
			}
			st := get(code)
			st.override = mergeFields(st.override, ov)
			continue
		}
		code, err := contract.ParseCode(key)
		if err != nil {
			return nil, &contract.ImportError{Key: key, Cause: err}
		}
		switch {
		case len(val) > 0 && val[0] == '"':
			var notes string
			if err := json.Unmarshal(val, &notes); err != nil {
				return nil, &contract.ImportError{Key: key, Cause: err}
			}
			get(code).notes = &notes
		case len(val) > 0 && val[0] == '{':
			var e entryJSON
			dec := json.NewDecoder(bytes.NewReader(val))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&e); err != nil {
				return nil, &contract.ImportError{Key: key, Cause: fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)}
			}
			if err := checkFields(e.Override); err != nil {
				return nil, &contract.ImportError{Key: key, Cause: err}
			}
			st := get(code)
			if e.Notes != nil {
				st.notes = e.Notes
			}
			st.override = mergeFields(st.override, e.Override)
		default:
			return nil, &contract.ImportError{Key: key, Cause: fmt.Errorf("%w: value must be a string or an object", contract.ErrInvalidInput)}
		}
	}
	return out, nil
}

// decodeOverride 接受 JSON 字符串（内含对象）或直接的对象。
func decodeOverride(val []byte) (map[string]string, error) {
	if len(val) > 0 && val[0] == '"' {
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return nil, err
		}
		val = []byte(s)
	}
	var ov map[string]string
	if err := json.Unmarshal(val, &ov); err != nil {
		return nil, fmt.Errorf("%w: override must be an object of strings: %v", contract.ErrInvalidInput, err)
	}
	if err := checkFields(ov); err != nil {
		return nil, err
	}
	return ov, nil
}

func checkFields(ov map[string]string) error {
	for f := range ov {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: empty override field", contract.ErrInvalidInput)
		}
	}
	return nil
}

func mergeFields(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalJSON re-encodes raw JSON with every object's keys sorted,
// recursively. Go's map iteration order is randomized, so two
// semantically identical payloads can unmarshal-then-remarshal to
// different byte strings; canonicalizing first keeps the idempotency
// hash stable regardless of how a caller orders metadata keys.
func CanonicalJSON(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("null"), nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalize(v))
}

func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]sortedEntry, 0, len(keys))
		for _, k := range keys {
			out = append(out, sortedEntry{k, canonicalize(t[k])})
		}
		return orderedMap(out)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}

type sortedEntry struct {
	key string
	val any
}

// orderedMap implements json.Marshaler so the sorted key order
// survives the final encoding/json pass, which would otherwise sort a
// plain map[string]any itself -- redundant here but this keeps the
// encoding explicit rather than relying on that incidental behavior.
type orderedMap []sortedEntry

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// MetadataHash returns the idempotency hash for a (batch_type,
// metadata) pair: the hex SHA-256 of "<batch_type>\n<canonical json>".
func MetadataHash(batchType string, metadata json.RawMessage) (string, error) {
	canon, err := CanonicalJSON(metadata)
	if err != nil {
		return "", err
	}
	sum := sha256.New()
	sum.Write([]byte(batchType))
	sum.Write([]byte{'\n'})
	sum.Write(canon)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

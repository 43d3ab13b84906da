// Copyright 2025 Certen Protocol
//
// Package canon provides deterministic ("canonical") JSON encoding and the
// hash/signature helpers built on top of it. Every hash chain link, dedupe
// key, commitment hash, and signature in this engine is computed over the
// canonical encoding of a payload so that two callers who agree on the
// payload always agree on the bytes being hashed.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Marshal encodes v as canonical JSON: object keys sorted lexicographically
// at every nesting level, no insignificant whitespace, UTF-8. v is first
// passed through encoding/json so struct tags and custom MarshalJSON
// methods are honored, then the result is re-ordered.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	return Reencode(raw)
}

// Reencode takes arbitrary JSON bytes and re-emits them in canonical form.
// Reencode(Reencode(x)) == Reencode(x) for any valid JSON x.
func Reencode(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canon: encode string: %w", err)
		}
		buf.Write(b)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canon: encode key: %w", err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported type %T", v)
	}
	return nil
}

// Hash returns the SHA-256 digest of v's canonical JSON encoding.
func Hash(v any) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HashOf is a convenience wrapper returning the hash as lowercase hex.
func HashOf(v any) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h), nil
}

// ChainHash computes the journal's per-event hash:
//
//	SHA256(prevHash + "|" + eventType + "|" + canonical_json(payload))
//
// prevHash and eventType are concatenated as raw strings (not JSON);
// only payload goes through canonical encoding.
func ChainHash(prevHash, eventType string, payload any) (string, error) {
	payloadJSON, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canon: chain hash payload: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(prevHash)
	buf.WriteByte('|')
	buf.WriteString(eventType)
	buf.WriteByte('|')
	buf.Write(payloadJSON)
	sum := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("%x", sum), nil
}

// GenesisPrevHash is the fixed prev_hash value for the first event ever
// committed to a journal. Decided in DESIGN.md (Open Question c): a
// 64-character zero string, never empty/nil, so prev_hash is always a
// well-formed hex string.
var GenesisPrevHash = strings.Repeat("0", 64)

package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Hash domains. Bump the version suffix if the hashed content changes shape.
const (
	DomainDocument    = "ledgerql/document/v1"
	DomainCompilation = "ledgerql/compilation/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalCompact encodes v as JSON without HTML escaping or a trailing
// newline. Map keys are sorted by encoding/json, so output is stable.
func marshalCompact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// marshalParams converts parameter values to JSON TEXT for storage.
// A nil slice is stored as [].
func marshalParams(params []string) (string, error) {
	if params == nil {
		params = []string{}
	}
	data, err := marshalCompact(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return data, nil
}

// unmarshalParams parses JSON TEXT to parameter values.
func unmarshalParams(data string) ([]string, error) {
	params := []string{}
	if data == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return params, nil
}

// CompilationID computes the content-addressed ID of a compilation. The
// request ID is excluded so that compiling the same formula with the same
// values twice yields one log entry.
func CompilationID(c Compilation) (string, error) {
	params := c.Params
	if params == nil {
		params = []string{}
	}
	data, err := marshalCompact(map[string]any{
		"database": c.Database,
		"formula":  c.Formula,
		"params":   params,
		"sql":      c.SQL,
		"table":    c.Table,
	})
	if err != nil {
		return "", fmt.Errorf("CompilationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCompilation, []byte(data)), nil
}

// documentHash identifies a document body within its slot.
func documentHash(kind, db, name string, body []byte) string {
	var buf bytes.Buffer
	buf.WriteString(kind)
	buf.WriteByte(0x00)
	buf.WriteString(db)
	buf.WriteByte(0x00)
	buf.WriteString(name)
	buf.WriteByte(0x00)
	buf.Write(body)
	return hashWithDomain(DomainDocument, buf.Bytes())
}

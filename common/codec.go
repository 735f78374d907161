package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// HexPrefix marks every payload crossing the rollup boundary.
const HexPrefix = "0x"

// EncodePayload serializes obj to UTF-8 JSON and wraps it as 0x-prefixed
// lowercase hex. Non-ASCII text is kept as raw UTF-8 and HTML characters
// are not escaped, so the bytes match what the frontend produces.
func EncodePayload(obj interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return "", err
	}
	return EncodeHex(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// EncodeHex wraps raw bytes as 0x-prefixed lowercase hex.
func EncodeHex(data []byte) string {
	return HexPrefix + hex.EncodeToString(data)
}

// DecodeHex strips the 0x marker and converts the remaining digits back to
// bytes. A payload without the marker is treated as empty. Odd length or
// non-hex digits yield a *DecodeError.
func DecodeHex(payload string) ([]byte, error) {
	if !strings.HasPrefix(payload, HexPrefix) {
		return []byte{}, nil
	}
	data, err := hex.DecodeString(payload[len(HexPrefix):])
	if err != nil {
		return nil, &DecodeError{Layer: LayerHex, Err: err}
	}
	return data, nil
}

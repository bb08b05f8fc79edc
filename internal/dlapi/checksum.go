package dlapi

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ErrChecksumMismatch reports a payload whose bytes do not match its checksum.
var ErrChecksumMismatch = errors.New("dlapi: checksum mismatch")

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodePayload base64 encodes data and attaches its checksum.
func EncodePayload(data []byte) Payload {
	return Payload{
		DataBase64: base64.StdEncoding.EncodeToString(data),
		Checksum:   Checksum(data),
	}
}

// DecodePayload decodes p and verifies its checksum. An empty checksum is
// accepted for peers that do not compute one.
func DecodePayload(p Payload) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.DataBase64)
	if err != nil {
		return nil, fmt.Errorf("dlapi: decode payload: %w", err)
	}
	if p.Checksum == "" {
		return data, nil
	}
	if subtle.ConstantTimeCompare([]byte(Checksum(data)), []byte(p.Checksum)) != 1 {
		return nil, ErrChecksumMismatch
	}
	return data, nil
}

// Package archive handles retrieval and integrity verification of PubMed
// baseline archive files.
package archive

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Status is the verification state of a downloaded archive.
type Status string

// Verification states.
const (
	StatusUnverified Status = "unverified"
	StatusMatched    Status = "matched"
	StatusMismatched Status = "mismatched"
)

// ParseChecksum extracts the hex digest from a checksum sidecar.
// Two grammars are accepted:
//
//	MD5(pubmed24n0001.xml.gz)= 1a2b3c...
//	1a2b3c...  pubmed24n0001.xml.gz
//
// The digest is returned lowercased.
func ParseChecksum(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty checksum sidecar")
	}

	var digest string
	if i := strings.LastIndex(text, "="); i >= 0 {
		digest = strings.TrimSpace(text[i+1:])
	} else {
		digest = strings.Fields(text)[0]
	}

	digest = strings.ToLower(digest)
	if _, err := hex.DecodeString(digest); err != nil || digest == "" {
		return "", fmt.Errorf("invalid hex digest %q", digest)
	}
	return digest, nil
}

// Verify checks raw archive bytes against a checksum sidecar. It returns
// StatusMatched only when the MD5 of raw equals the sidecar digest,
// compared case-insensitively. An unparseable sidecar is an error with
// StatusUnverified; any other outcome is StatusMismatched.
//
// Callers must not decompress or parse an archive unless Verify returns
// StatusMatched.
func Verify(raw []byte, sidecar string) (Status, error) {
	expected, err := ParseChecksum(sidecar)
	if err != nil {
		return StatusUnverified, err
	}

	sum := md5.Sum(raw)
	if hex.EncodeToString(sum[:]) == expected {
		return StatusMatched, nil
	}
	return StatusMismatched, nil
}

// Package hash provides the two digests the core needs: MD5 for deriving
// deterministic index-table names from flattened keys, and SHA-256 for
// document content and schema fingerprints.
package hash

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// MD5Hex returns the lowercase hex MD5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IndexTableName derives the physical table name for a flattened key,
// per spec §4.5: "index_" + MD5_lowercase_hex(key).
func IndexTableName(key string) string {
	return "index_" + MD5Hex(key)
}

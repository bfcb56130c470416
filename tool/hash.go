package tool

import (
	"crypto/md5"
	"encoding/hex"
)

// Md5Hex hashes text payloads; the protocol names inline texts "{md5}.txt".
func Md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

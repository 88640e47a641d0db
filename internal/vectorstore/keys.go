package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// GenerateKey derives a deterministic cache key from an operation name and
// its parameters. Identical (operation, params, options) always yield the
// identical key: encoding/json sorts map keys and emits struct fields in
// declaration order, so the digest input is canonical.
//
// The operation name stays in clear text as the key prefix so write paths
// can invalidate whole families of keys by substring.
func GenerateKey(operation string, params, options any) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	// Own types only; encoding cannot fail for them.
	_ = enc.Encode(params)
	_ = enc.Encode(options)
	return operation + ":" + hex.EncodeToString(h.Sum(nil))
}

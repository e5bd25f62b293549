package tigris

import (
	"encoding/base64"
	"math/rand"
	"strconv"
	"strings"
)

// Per-process salt appended before encoding. This is obfuscation, not
// cryptography: it only keeps credentials and the site ID from sitting in
// memory as recognizable plain text.
var secretSalt = strconv.Itoa(rand.Intn(32768))

// secret holds a mangled credential string.
type secret string

// mangle wraps a plain string into a secret.
func mangle(s string) secret {
	return secret(base64.StdEncoding.EncodeToString([]byte(s + secretSalt)))
}

// reveal returns the original plain string.
func (s secret) reveal() string {
	decoded, err := base64.StdEncoding.DecodeString(string(s))
	if err != nil {
		// Only reachable if someone stored a non-mangled value.
		return ""
	}
	return strings.TrimSuffix(string(decoded), secretSalt)
}

func (s secret) empty() bool { return s == "" }

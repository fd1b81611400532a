package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Changing these invalidates no stored hash because the
// parameters are encoded into the hash string itself.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var (
	jwtSecret     string
	jwtSecretByte []byte
	jwtMutex      sync.RWMutex
)

// SetJWTSecret updates the secret used for token signing. Called once at
// startup with the configuration-supplied secret, and by tests.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecret = secret
	jwtSecretByte = []byte(secret)
}

// GetJWTSecretByte returns a copy of the current JWT secret bytes in a thread-safe manner.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return append([]byte(nil), jwtSecretByte...)
}

// GenerateSalt returns a new random salt, base64 encoded for storage.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(salt), nil
}

// HashPasswordArgon2 derives an argon2id hash of the password with the given
// base64 salt and returns it in the encoded form
// "argon2id$t=<t>,m=<m>,p=<p>$<hash>".
func HashPasswordArgon2(password, salt string) (string, error) {
	saltBytes, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt encoding: %w", err)
	}
	key := argon2.IDKey([]byte(password), saltBytes, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$t=%d,m=%d,p=%d$%s",
		argonTime, argonMemory, argonThreads,
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword reports whether the plain password matches the stored
// argon2id hash. Comparison is constant-time.
func VerifyPassword(plain, stored, salt string) (bool, error) {
	if !strings.HasPrefix(stored, "argon2id$") {
		return false, fmt.Errorf("unsupported password hash format")
	}
	recomputed, err := HashPasswordArgon2(plain, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(recomputed), []byte(stored)) == 1, nil
}

package hash

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Params are the argon2id parameters new hashes are produced with.
var Params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  1,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var ErrUnknownFormat = errors.New("unknown password hash format")

func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, Params)
}

// CheckPassword compares password against a stored hash. needsRehash is set
// on a match when the stored hash is bcrypt or uses outdated argon2id params.
func CheckPassword(hash, password string) (match bool, needsRehash bool, err error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		match, err = argon2id.ComparePasswordAndHash(password, hash)
		if err != nil || !match {
			return false, false, err
		}
		params, _, _, err := argon2id.DecodeHash(hash)
		if err != nil {
			return true, false, nil
		}
		return true, *params != *Params, nil

	case isBcrypt(hash):
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		if err != nil {
			return false, false, err
		}
		return true, true, nil
	}
	return false, false, ErrUnknownFormat
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// dummyHash is built at init so the first Burn costs the same as later ones.
var dummyHash = mustHash("not-a-real-password")

func mustHash(password string) string {
	h, err := argon2id.CreateHash(password, Params)
	if err != nil {
		panic(err)
	}
	return h
}

// Burn runs one verification against a fixed hash. Used when the account
// does not exist so the caller spends the same time as on a wrong password.
func Burn(password string) {
	_, _ = argon2id.ComparePasswordAndHash(password, dummyHash)
}

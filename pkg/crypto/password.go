package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt hashes without truncating it.
const MaxPasswordBytes = 72

var (
	// ErrPasswordMismatch is returned by ComparePassword when the password is wrong.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrPasswordTooLong is returned by HashPassword for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = fmt.Errorf("password longer than %d bytes", MaxPasswordBytes)
)

// PasswordCost is the bcrypt work factor applied to new hashes.
var PasswordCost = bcrypt.DefaultCost

// HashPassword hashes plain at PasswordCost.
func HashPassword(plain string) ([]byte, error) {
	if len(plain) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
}

// ComparePassword checks plain against hash. Any error other than
// ErrPasswordMismatch means the stored hash is unreadable.
func ComparePassword(hash []byte, plain string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}

// NeedsRehash reports whether hash was made at a cost other than PasswordCost.
func NeedsRehash(hash []byte) bool {
	cost, err := bcrypt.Cost(hash)
	return err == nil && cost != PasswordCost
}

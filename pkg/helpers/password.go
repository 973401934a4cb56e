package helpers

import "golang.org/x/crypto/bcrypt"

// passwordCost is the bcrypt work factor used for account passwords.
const passwordCost = bcrypt.DefaultCost

// HashPassword derives the bcrypt hash stored on the account record.
// The plain text never leaves this function.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareHashAndPassword reports whether plain matches the stored hash.
func CompareHashAndPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

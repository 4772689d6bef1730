package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Passwords are bcrypt-hashed at rest. The portal historically stored
// them in clear text; that behavior is not carried forward.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func CheckPass(passHash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(passHash), []byte(pass))
}

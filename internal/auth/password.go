package auth

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength is the minimum accepted password length on signup and
// profile update.
const MinPasswordLength = 5

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

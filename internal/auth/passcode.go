package auth

import "golang.org/x/crypto/bcrypt"

// HashPasscode hashes the staff passcode with the configured cost.
func HashPasscode(passcode string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePasscode verifies a passcode against its hashed value.
func ComparePasscode(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

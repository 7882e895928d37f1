package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	pinLength = 6
	// no 0/O or 1/I
	pinAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GeneratePin returns a random delivery PIN.
func GeneratePin() (string, error) {
	max := big.NewInt(int64(len(pinAlphabet)))
	pin := make([]byte, pinLength)
	for i := range pin {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate delivery PIN: %w", err)
		}
		pin[i] = pinAlphabet[n.Int64()]
	}
	return string(pin), nil
}

// hashPin generates a PIN and its bcrypt hash.
func hashPin(cost int) (pin, hash string, err error) {
	pin, err = GeneratePin()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash delivery PIN: %w", err)
	}
	return pin, string(h), nil
}

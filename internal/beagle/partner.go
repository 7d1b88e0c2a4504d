package beagle

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// NewPartnerID generates a random 16-byte partner id in uppercase hex.
func NewPartnerID() (string, error) {
	var b [IDLen / 2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate partner id: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// NormalizeID uppercases a hex id and checks that it is 32 hex characters.
// The device does not validate ids; this is for input coming from users.
func NormalizeID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) != IDLen {
		return "", fmt.Errorf("id must be %d hex characters, got %d", IDLen, len(id))
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", fmt.Errorf("id is not hex: %w", err)
	}
	return id, nil
}

// CleanID trims and uppercases an id naming an existing book. Unlike
// NormalizeID it accepts any length, since the device stores whatever id a
// client uploaded; it only rejects ids that cannot be sent in a command line.
func CleanID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return "", errors.New("id is empty")
	}
	if strings.ContainsAny(id, " \t\r\n=") {
		return "", fmt.Errorf("id %q contains a space, '=' or line break", id)
	}
	return id, nil
}

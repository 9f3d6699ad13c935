package session

import "crypto/rand"

// idAlphabet excludes visually ambiguous characters (0/O, 1/I), per the documented
// decision to use an 8-character uppercase alphanumeric, human-typable session id.
const idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const idLength = 8

// generateID returns a fresh random session identifier.
func generateID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}

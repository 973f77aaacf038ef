package tracker

import "github.com/google/uuid"

const (
	uidLength   = 11
	uidLetters  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	uidAlphabet = uidLetters + "0123456789"
)

// GenerateUID returns a new 11 character uid: a letter followed by ten
// alphanumerics.
func GenerateUID() string {
	raw := uuid.New()
	b := make([]byte, uidLength)
	b[0] = uidLetters[int(raw[0])%len(uidLetters)]
	for i := 1; i < uidLength; i++ {
		b[i] = uidAlphabet[int(raw[i])%len(uidAlphabet)]
	}
	return string(b)
}

// ValidUID reports whether s has the shape GenerateUID produces.
func ValidUID(s string) bool {
	if len(s) != uidLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

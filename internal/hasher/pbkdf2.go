package hasher

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Prefix        = "$pbkdf2-sha256$"
	defaultPBKDF2Rounds = 29000
	pbkdf2SaltSize      = 16
	pbkdf2KeySize       = 32
)

// ab64 is passlib's "adapted base64": unpadded standard base64 with '.'
// in place of '+'.
var ab64 = base64.RawStdEncoding

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(ab64.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return ab64.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// hashPBKDF2 renders $pbkdf2-sha256$<rounds>$<salt>$<checksum>.
func hashPBKDF2(password string, rounds int) (string, error) {
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, rounds, pbkdf2KeySize, sha256.New)
	return fmt.Sprintf("%s%d$%s$%s", pbkdf2Prefix, rounds, ab64Encode(salt), ab64Encode(key)), nil
}

func verifyPBKDF2(password, hash string) bool {
	parts := strings.Split(strings.TrimPrefix(hash, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return false
	}

	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 {
		return false
	}
	salt, err := ab64Decode(parts[1])
	if err != nil {
		return false
	}
	want, err := ab64Decode(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

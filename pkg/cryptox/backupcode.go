package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// BackupCodeLength is the fixed length of a recovery code. Login-time code
// classification relies on this being distinct from the 6-digit TOTP length.
const BackupCodeLength = 8

const backupCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBackupCode returns a single 8-character recovery code drawn from
// A-Z and 0-9.
func GenerateBackupCode() (string, error) {
	code := make([]byte, BackupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		code[i] = backupCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// GenerateBackupCodes returns count fresh recovery codes. Callers store only
// the fingerprints; the plaintext set is shown to the user exactly once.
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := range codes {
		code, err := GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

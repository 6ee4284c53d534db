package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("produces distinct url-safe tokens", func(t *testing.T) {
		a, err := GenerateToken(TokenSize256)
		require.NoError(t, err)
		b, err := GenerateToken(TokenSize256)
		require.NoError(t, err)

		require.NotEqual(t, a, b)
		require.Len(t, a, 43) // 32 bytes base64url unpadded
		require.NotContains(t, a, "=")
		require.NotContains(t, a, "+")
		require.NotContains(t, a, "/")
	})

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := GenerateToken(0)
		require.Error(t, err)
		_, err = GenerateToken(-1)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	fp := FingerprintToken("some-token")

	require.Equal(t, fp, FingerprintToken("some-token"), "fingerprint is deterministic")
	require.NotEqual(t, fp, FingerprintToken("other-token"))
	require.Len(t, fp, 43) // SHA-256 base64url unpadded
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := map[string]struct{}{}
	for _, code := range codes {
		require.Len(t, code, BackupCodeLength)
		for _, r := range code {
			require.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
				"unexpected character %q in backup code", r)
		}
		seen[code] = struct{}{}
	}
	require.Len(t, seen, 10, "codes should be distinct")
}

package download

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChecksumInfersAlgorithm(t *testing.T) {
	cs, err := ParseChecksum(strings.Repeat("ab", 16))
	require.NoError(t, err)
	require.Equal(t, "md5", cs.Algorithm)

	cs, err = ParseChecksum(strings.Repeat("ab", 20))
	require.NoError(t, err)
	require.Equal(t, "sha1", cs.Algorithm)

	cs, err = ParseChecksum(strings.ToUpper(strings.Repeat("AB", 32)))
	require.NoError(t, err)
	require.Equal(t, "sha256", cs.Algorithm)
	require.Equal(t, strings.Repeat("ab", 32), cs.Value, "digest is normalized to lower case")
}

func TestParseChecksumRejectsInvalid(t *testing.T) {
	_, err := ParseChecksum("nothex!")
	require.Error(t, err)

	_, err = ParseChecksum("abcd")
	require.Error(t, err, "unsupported digest length")
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	data := []byte("some downloaded bytes")
	require.NoError(t, os.WriteFile(path, data, 0644))

	sum := sha256.Sum256(data)
	cs, err := ParseChecksum(hex.EncodeToString(sum[:]))
	require.NoError(t, err)

	ok, actual, err := cs.VerifyFile(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cs.Value, actual)

	wrong, err := ParseChecksum(strings.Repeat("00", 32))
	require.NoError(t, err)
	ok, _, err = wrong.VerifyFile(path)
	require.NoError(t, err)
	require.False(t, ok)
}

package codec

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/arkeep-io/arkeep/shared/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompressAlgorithm(t *testing.T) {
	cases := map[string]CompressAlgorithm{
		"none":    {Family: "none"},
		"":        {Family: "none"},
		"gzip":    {Family: "gzip"},
		"zstd6":   {Family: "zstd", Level: 6},
		"lz4-9":   {Family: "lz4", Level: 9},
		"bzip3":   {Family: "bzip", Level: 3},
	}
	for in, want := range cases {
		got, err := ParseCompressAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func compressRoundTrip(t *testing.T, family string) {
	t.Helper()
	alg, err := ParseCompressAlgorithm(family)
	require.NoError(t, err)
	c, err := NewCompressor(alg)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	compressed, err := c.Compress(data)
	require.NoError(t, err)
	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestCompressorsRoundTrip(t *testing.T) {
	for _, family := range []string{"none", "gzip", "zstd", "zstd19", "lz4", "lz4-9"} {
		t.Run(family, func(t *testing.T) { compressRoundTrip(t, family) })
	}
}

func TestUnsupportedCompressAlgorithm(t *testing.T) {
	alg, err := ParseCompressAlgorithm("bzip3")
	require.NoError(t, err)
	_, err = NewCompressor(alg)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestAESGCMCipherRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c, err := NewAESGCMCipher(key)
	require.NoError(t, err)

	plain := []byte("archive fragment payload")
	ct, err := c.Encrypt(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, ct)

	got, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestAESGCMRejectsBadKeySize(t *testing.T) {
	_, err := NewAESGCMCipher(make([]byte, 16))
	assert.Error(t, err)
}

func TestAsymmetricEncryptDecrypt(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	session := []byte("0123456789abcdef0123456789abcdef")
	ct, err := AsymmetricEncrypt(&priv.PublicKey, session)
	require.NoError(t, err)

	got, err := AsymmetricDecrypt(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestHashSum(t *testing.T) {
	sum, err := Sum(HashSHA256, []byte("hello"))
	require.NoError(t, err)
	assert.Len(t, sum, 32)

	_, err = Sum(HashAlgorithm("md5"), []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestEd25519Signer(t *testing.T) {
	cert, err := secret.GenerateCertificate()
	require.NoError(t, err)
	signer := NewEd25519Signer(cert)

	digest, err := Sum(HashSHA256, []byte("manifest"))
	require.NoError(t, err)

	sig, err := signer.Sign(digest)
	require.NoError(t, err)
	assert.True(t, signer.Verify(digest, sig))
}

func TestDeltaUnsupported(t *testing.T) {
	_, err := NewDiffer(DeltaXDelta1)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

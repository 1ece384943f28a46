package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordEqual(t *testing.T) {
	pw := NewPassword("correct-horse-battery-staple")
	assert.True(t, pw.Equal([]byte("correct-horse-battery-staple")))
	assert.False(t, pw.Equal([]byte("wrong")))
}

func TestPasswordNeverLeaksViaString(t *testing.T) {
	pw := NewPassword("topsecret")
	assert.NotContains(t, pw.String(), "topsecret")
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("fixed-salt-0123456789ab")
	k1, err := DeriveKeyWithIterations(NewPassword("hunter2"), salt, 1000)
	require.NoError(t, err)
	k2, err := DeriveKeyWithIterations(NewPassword("hunter2"), salt, 1000)
	require.NoError(t, err)
	assert.Equal(t, k1.Bytes(), k2.Bytes())
	assert.Len(t, k1.Bytes(), KeyLength)
}

func TestDeriveKeyDifferentSaltDiffers(t *testing.T) {
	k1, err := DeriveKeyWithIterations(NewPassword("hunter2"), []byte("salt-a-0123456789ab"), 1000)
	require.NoError(t, err)
	k2, err := DeriveKeyWithIterations(NewPassword("hunter2"), []byte("salt-b-0123456789ab"), 1000)
	require.NoError(t, err)
	assert.NotEqual(t, k1.Bytes(), k2.Bytes())
}

func TestCertificateSignVerify(t *testing.T) {
	cert, err := GenerateCertificate()
	require.NoError(t, err)

	data := []byte("archive manifest bytes")
	sig, err := cert.Sign(data)
	require.NoError(t, err)
	assert.True(t, cert.Verify(data, sig))
	assert.False(t, cert.Verify([]byte("tampered"), sig))
}

func TestCertificatePEMRoundTrip(t *testing.T) {
	cert, err := GenerateCertificate()
	require.NoError(t, err)

	pubPEM, err := cert.MarshalPublicPEM()
	require.NoError(t, err)
	privPEM, err := cert.MarshalPrivatePEM()
	require.NoError(t, err)

	loaded, err := ParseCertificatePEM(pubPEM, privPEM)
	require.NoError(t, err)

	data := []byte("round trip")
	sig, err := loaded.Sign(data)
	require.NoError(t, err)
	assert.True(t, cert.Verify(data, sig))
}

func TestParseCertificatePublicOnlyCannotSign(t *testing.T) {
	cert, err := GenerateCertificate()
	require.NoError(t, err)
	pubPEM, err := cert.MarshalPublicPEM()
	require.NoError(t, err)

	verifyOnly, err := ParseCertificatePEM(pubPEM, nil)
	require.NoError(t, err)
	_, err = verifyOnly.Sign([]byte("x"))
	assert.Error(t, err)
}

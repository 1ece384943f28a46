package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadParsesSectionsAndValues(t *testing.T) {
	text := `[global]
compress-algorithm=zstd9
crypt-algorithm=none

[ftp-server]
host=backup.example.com
port=21
`
	f, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.Empty(t, errs)

	v, ok := f.Get(SectionGlobal, "compress-algorithm")
	require.True(t, ok)
	require.Equal(t, "zstd9", v)

	v, ok = f.Get(SectionFTPServer, "host")
	require.True(t, ok)
	require.Equal(t, "backup.example.com", v)
}

func TestReadRewritesDeprecatedAlias(t *testing.T) {
	text := "[ftp-server]\nuser=alice\n"
	f, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.Empty(t, errs)

	v, ok := f.Get(SectionFTPServer, "login-name")
	require.True(t, ok)
	require.Equal(t, "alice", v)

	_, ok = f.Get(SectionFTPServer, "user")
	require.False(t, ok, "the deprecated spelling must not also appear under its own name")
}

func TestReadUnknownSectionIsFatal(t *testing.T) {
	text := "[not-a-real-section]\nkey=value\n"
	_, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.NotEmpty(t, errs)
	pe, ok := errs[len(errs)-1].(*ParseError)
	require.True(t, ok)
	require.True(t, pe.Fatal)
}

func TestReadUnknownKeyInKnownSectionIsFatal(t *testing.T) {
	text := "[global]\nnot-a-real-key=1\n"
	_, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.NotEmpty(t, errs)
	pe, ok := errs[len(errs)-1].(*ParseError)
	require.True(t, ok)
	require.True(t, pe.Fatal)
}

func TestReadMalformedLineIsCollectedNotFatal(t *testing.T) {
	text := "[global]\nthis-line-has-no-equals-sign\ncompress-algorithm=none\n"
	f, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.Len(t, errs, 1)
	pe := errs[0].(*ParseError)
	require.False(t, pe.Fatal)

	v, ok := f.Get(SectionGlobal, "compress-algorithm")
	require.True(t, ok)
	require.Equal(t, "none", v)
}

func TestRoundTripWithBannerAndSeparator(t *testing.T) {
	text := "# ------------------------------------------------------------------------\n" +
		"# arkeep configuration\n" +
		"# ------------------------------------------------------------------------\n" +
		"[global]\n" +
		"compress-algorithm=zstd6\n" +
		"# --- destinations below ---\n" +
		"[master]\n" +
		"server-mode=master\n"

	f, errs := Read(DefaultTable, "test.conf", strings.NewReader(text))
	require.Empty(t, errs)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))

	f2, errs2 := Read(DefaultTable, "test.conf", strings.NewReader(buf.String()))
	require.Empty(t, errs2)

	var buf2 bytes.Buffer
	require.NoError(t, Write(&buf2, f2))
	require.Equal(t, buf.String(), buf2.String(), "write(read(write(read(text)))) must be a fixed point")
}

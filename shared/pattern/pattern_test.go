package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobMatch(t *testing.T) {
	p, err := Compile(TypeGlob, "*.tmp")
	require.NoError(t, err)
	assert.True(t, p.Match("file.tmp"))
	assert.True(t, p.Match("dir/sub/file.tmp"))
	assert.False(t, p.Match("file.txt"))
}

func TestGlobDoubleStarCrossesSeparators(t *testing.T) {
	p, err := Compile(TypeGlob, "cache/**/*.log")
	require.NoError(t, err)
	assert.True(t, p.Match("cache/a/b/c.log"))
	assert.True(t, p.Match("cache/c.log"))
	assert.False(t, p.Match("other/c.log"))
}

func TestRegexMatch(t *testing.T) {
	p, err := Compile(TypeRegex, `^var/log/.*\.gz$`)
	require.NoError(t, err)
	assert.True(t, p.Match("var/log/syslog.gz"))
	assert.False(t, p.Match("var/log/syslog"))
}

func TestExtendedRegexMatch(t *testing.T) {
	p, err := Compile(TypeExtendedRegex, `(foo|bar)\.txt$`)
	require.NoError(t, err)
	assert.True(t, p.Match("a/foo.txt"))
	assert.True(t, p.Match("bar.txt"))
	assert.False(t, p.Match("baz.txt"))
}

func TestInvalidPatternsError(t *testing.T) {
	_, err := Compile(TypeRegex, "(unclosed")
	assert.Error(t, err)
}

func TestEntryListIncludeExclude(t *testing.T) {
	inc, _ := Compile(TypeGlob, "*.txt")
	exc, _ := Compile(TypeGlob, "*secret*")
	el := &EntryList{
		Include: NewList(inc),
		Exclude: NewList(exc),
	}
	assert.True(t, el.Selected("notes.txt"))
	assert.False(t, el.Selected("secret.txt"))
	assert.False(t, el.Selected("notes.log"))
}

func TestEntryListEmptyIncludeMeansAll(t *testing.T) {
	exc, _ := Compile(TypeGlob, "*.tmp")
	el := &EntryList{Exclude: NewList(exc)}
	assert.True(t, el.Selected("anything.go"))
	assert.False(t, el.Selected("x.tmp"))
}

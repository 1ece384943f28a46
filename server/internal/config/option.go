// Package config implements the declarative option table and the
// `[section]`/`key=value` config file format of spec.md §6: section
// names, deprecated-key rewriting, unknown-key rejection, and a
// write(read(text)) round-trip modulo comment normalization.
package config

import "fmt"

// Visibility groups options by how prominently a help UI should show
// them, mirroring spec.md §6's 0=common/1=detail/2=expert levels.
type Visibility int

const (
	VisibilityCommon Visibility = 0
	VisibilityDetail Visibility = 1
	VisibilityExpert Visibility = 2
)

// Section names spec.md §6 recognizes. "end" terminates parsing of the
// current block and is accepted as a no-op section marker.
const (
	SectionFileServer   = "file-server"
	SectionFTPServer    = "ftp-server"
	SectionSSHServer    = "ssh-server"
	SectionWebDAVServer = "webdav-server"
	SectionDevice       = "device"
	SectionMaster       = "master"
	SectionMaintenance  = "maintenance"
	SectionGlobal       = "global"
	SectionEnd          = "end"
)

// KnownSections lists every section recognized by the reader; a
// `[name]` header matching none of these is itself a fatal config
// error, distinct from an unknown key inside a known section.
var KnownSections = map[string]bool{
	SectionFileServer:   true,
	SectionFTPServer:    true,
	SectionSSHServer:    true,
	SectionWebDAVServer: true,
	SectionDevice:       true,
	SectionMaster:       true,
	SectionMaintenance:  true,
	SectionGlobal:       true,
	SectionEnd:          true,
}

// Option describes one recognized config key: which section it lives
// in, its deprecated spellings (rewritten transparently on read, but
// never written back out), and its declared visibility for a future
// help/CLI layer. The zero value of Default is used when the key is
// absent from a loaded file.
type Option struct {
	Section     string
	Key         string
	Aliases     []string // deprecated spellings that alias this Key
	Visibility  Visibility
	Default     string
	Description string
}

// Table is an ordered, declarative option descriptor set: options keep
// the order in which they were declared. Write does not consult it.
type Table struct {
	options []Option
	byAlias map[sectionKey]string // (section, alias) -> canonical key
	known   map[sectionKey]Option
}

type sectionKey struct {
	section string
	key     string
}

// NewTable builds a Table from a descriptor list, validating that
// every Section is recognized and that no (section, key) pair repeats.
func NewTable(options []Option) (*Table, error) {
	t := &Table{
		options: options,
		byAlias: make(map[sectionKey]string),
		known:   make(map[sectionKey]Option),
	}
	for _, opt := range options {
		if !KnownSections[opt.Section] {
			return nil, fmt.Errorf("config: option %s.%s: unknown section", opt.Section, opt.Key)
		}
		sk := sectionKey{opt.Section, opt.Key}
		if _, exists := t.known[sk]; exists {
			return nil, fmt.Errorf("config: duplicate option %s.%s", opt.Section, opt.Key)
		}
		t.known[sk] = opt
		for _, alias := range opt.Aliases {
			t.byAlias[sectionKey{opt.Section, alias}] = opt.Key
		}
	}
	return t, nil
}

// Canonicalize resolves a possibly-deprecated key to its current
// spelling within section. Returns the key unchanged if it carries no
// alias (including when it is already canonical).
func (t *Table) Canonicalize(section, key string) string {
	if canonical, ok := t.byAlias[sectionKey{section, key}]; ok {
		return canonical
	}
	return key
}

// Lookup returns the descriptor for (section, key) after alias
// resolution, and whether it is a known option at all.
func (t *Table) Lookup(section, key string) (Option, bool) {
	opt, ok := t.known[sectionKey{section, t.Canonicalize(section, key)}]
	return opt, ok
}

// DefaultTable is the descriptor set for every key spec.md §6 names
// across the nine recognized sections. Visibility assignments follow
// the CLI's 0/1/2 grouping: connection basics are common, tuning knobs
// are detail, and rarely touched internals are expert.
var DefaultTable = mustTable([]Option{
	{Section: SectionFileServer, Key: "root", Visibility: VisibilityCommon, Description: "root directory served for file-server storage"},
	{Section: SectionFileServer, Key: "max-connections", Visibility: VisibilityDetail, Default: "8"},

	{Section: SectionFTPServer, Key: "host", Visibility: VisibilityCommon},
	{Section: SectionFTPServer, Key: "port", Visibility: VisibilityCommon, Default: "21"},
	{Section: SectionFTPServer, Key: "login-name", Visibility: VisibilityCommon, Aliases: []string{"user"}},
	{Section: SectionFTPServer, Key: "password", Visibility: VisibilityExpert},

	{Section: SectionSSHServer, Key: "host", Visibility: VisibilityCommon},
	{Section: SectionSSHServer, Key: "port", Visibility: VisibilityCommon, Default: "22"},
	{Section: SectionSSHServer, Key: "login-name", Visibility: VisibilityCommon, Aliases: []string{"user", "ssh-login-name"}},
	{Section: SectionSSHServer, Key: "public-key", Visibility: VisibilityDetail},
	{Section: SectionSSHServer, Key: "private-key", Visibility: VisibilityDetail},

	{Section: SectionWebDAVServer, Key: "host", Visibility: VisibilityCommon},
	{Section: SectionWebDAVServer, Key: "port", Visibility: VisibilityCommon, Default: "443"},
	{Section: SectionWebDAVServer, Key: "login-name", Visibility: VisibilityCommon},
	{Section: SectionWebDAVServer, Key: "password", Visibility: VisibilityExpert},

	{Section: SectionDevice, Key: "name", Visibility: VisibilityCommon},
	{Section: SectionDevice, Key: "write-command", Visibility: VisibilityExpert},
	{Section: SectionDevice, Key: "request-volume-command", Visibility: VisibilityExpert},
	{Section: SectionDevice, Key: "unload-command", Visibility: VisibilityExpert},

	{Section: SectionMaster, Key: "server-mode", Visibility: VisibilityCommon, Default: "slave", Aliases: []string{"mode"}},
	{Section: SectionMaster, Key: "server-port", Visibility: VisibilityCommon, Default: "9000"},
	{Section: SectionMaster, Key: "tls-mode", Visibility: VisibilityDetail, Default: "try"},

	{Section: SectionMaintenance, Key: "date", Visibility: VisibilityDetail},
	{Section: SectionMaintenance, Key: "weekdays", Visibility: VisibilityDetail},
	{Section: SectionMaintenance, Key: "begin", Visibility: VisibilityDetail},
	{Section: SectionMaintenance, Key: "end", Visibility: VisibilityDetail},

	{Section: SectionGlobal, Key: "archive-part-size", Visibility: VisibilityDetail, Aliases: []string{"max-archive-size"}},
	{Section: SectionGlobal, Key: "compress-algorithm", Visibility: VisibilityCommon, Default: "zstd6"},
	{Section: SectionGlobal, Key: "crypt-algorithm", Visibility: VisibilityCommon, Default: "none"},
	{Section: SectionGlobal, Key: "log-types", Visibility: VisibilityDetail, Default: "errors,warnings"},
	{Section: SectionGlobal, Key: "no-stop-on-error", Visibility: VisibilityDetail, Default: "false"},
})

func mustTable(options []Option) *Table {
	t, err := NewTable(options)
	if err != nil {
		panic(err)
	}
	return t
}

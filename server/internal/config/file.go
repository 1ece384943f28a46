package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// headerTitle is the middle line of the three-line banner a config
// file may start with; Read recognizes and skips it, Write re-emits it.
const headerTitle = "arkeep configuration"

var headerRule = strings.Repeat("-", 72)

// line is one entry of a Section: either a comment (Key == "" and
// Comment != "") or a key=value pair. Comments are preserved verbatim
// in place so Write's round-trip stays close to the source text; only
// the banner and separator lines are normalized to a canonical form.
type line struct {
	Comment string // raw text including leading "#", empty for key=value lines
	Key     string
	Value   string
}

// Section is one `[name]` block (or the implicit pre-section global
// preamble, Name == "").
type Section struct {
	Name  string
	Lines []line
}

// File is a parsed config document: an optional recognized banner
// followed by an ordered sequence of sections.
type File struct {
	HasBanner bool
	Sections  []Section
}

// Get returns the value of key in section, or "" with ok=false if not
// present. key is matched exactly; deprecated aliases are not resolved.
func (f *File) Get(section, key string) (string, bool) {
	for _, s := range f.Sections {
		if s.Name != section {
			continue
		}
		for _, l := range s.Lines {
			if l.Key == key {
				return l.Value, true
			}
		}
	}
	return "", false
}

// Set assigns key=value in section, appending a new section or line if
// neither exists yet.
func (f *File) Set(section, key, value string) {
	for i := range f.Sections {
		if f.Sections[i].Name != section {
			continue
		}
		for j := range f.Sections[i].Lines {
			if f.Sections[i].Lines[j].Key == key {
				f.Sections[i].Lines[j].Value = value
				return
			}
		}
		f.Sections[i].Lines = append(f.Sections[i].Lines, line{Key: key, Value: value})
		return
	}
	f.Sections = append(f.Sections, Section{Name: section, Lines: []line{{Key: key, Value: value}}})
}

// Read parses a config file against table, rewriting deprecated
// aliases to their canonical key as it goes. It returns everything
// successfully parsed together with any collected non-fatal errors; a
// fatal error (unknown section, unknown key) is returned as the last
// element of errs and parsing stops at that point, per spec.md §6.
func Read(table *Table, filename string, r io.Reader) (*File, []error) {
	f := &File{}
	var errs []error
	currentIdx := -1 // index into f.Sections of the block currently being filled; -1 = none opened yet

	ensureSection := func() int {
		if currentIdx == -1 {
			f.Sections = append(f.Sections, Section{})
			currentIdx = len(f.Sections) - 1
		}
		return currentIdx
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	atBannerStart := true
	bannerLinesSeen := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		text := strings.TrimSpace(raw)

		if atBannerStart {
			if looksLikeBannerLine(text, bannerLinesSeen) {
				bannerLinesSeen++
				if bannerLinesSeen == 3 {
					f.HasBanner = true
					atBannerStart = false
				}
				continue
			}
			atBannerStart = false // banner only ever appears as the first lines of the file
		}

		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "#") {
			idx := ensureSection()
			f.Sections[idx].Lines = append(f.Sections[idx].Lines, line{Comment: normalizeComment(text)})
			continue
		}

		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			name := strings.TrimSpace(text[1 : len(text)-1])
			if !KnownSections[name] {
				errs = append(errs, &ParseError{File: filename, Line: lineNo, Message: fmt.Sprintf("unknown section %q", name), Fatal: true})
				return f, errs
			}
			f.Sections = append(f.Sections, Section{Name: name})
			currentIdx = len(f.Sections) - 1
			continue
		}

		eq := strings.Index(text, "=")
		if eq < 0 {
			errs = append(errs, &ParseError{File: filename, Line: lineNo, Message: fmt.Sprintf("malformed line %q", raw)})
			continue
		}
		key := strings.TrimSpace(text[:eq])
		value := strings.TrimSpace(text[eq+1:])

		section := ""
		if currentIdx != -1 {
			section = f.Sections[currentIdx].Name
		}
		key = table.Canonicalize(section, key)
		if _, ok := table.Lookup(section, key); !ok {
			errs = append(errs, &ParseError{File: filename, Line: lineNo, Message: fmt.Sprintf("unknown key %q in section %q", key, section), Fatal: true})
			return f, errs
		}

		idx := ensureSection()
		f.Sections[idx].Lines = append(f.Sections[idx].Lines, line{Key: key, Value: value})
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, &ParseError{File: filename, Line: lineNo, Message: err.Error(), Fatal: true})
	}

	return f, errs
}

// looksLikeBannerLine reports whether text matches the banner's line
// at position pos (0=top rule, 1=title, 2=bottom rule).
func looksLikeBannerLine(text string, pos int) bool {
	switch pos {
	case 0, 2:
		return strings.HasPrefix(text, "# ---")
	case 1:
		return strings.HasPrefix(text, "#") && strings.Contains(text, "configuration")
	default:
		return false
	}
}

// normalizeComment re-emits a "# --- ..." separator in the writer's
// canonical width, leaving other comments untouched — this is the
// "modulo comment normalization" the round-trip law allows for.
func normalizeComment(text string) string {
	if strings.HasPrefix(text, "# ---") {
		return "# " + headerRule
	}
	return text
}

// Write serializes f back to the `[section]`/`key=value` format,
// re-emitting the banner (if present) and every comment/entry in
// original order.
func Write(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)

	if f.HasBanner {
		fmt.Fprintf(bw, "# %s\n", headerRule)
		fmt.Fprintf(bw, "# %s\n", headerTitle)
		fmt.Fprintf(bw, "# %s\n", headerRule)
	}

	for _, s := range f.Sections {
		if s.Name != "" {
			fmt.Fprintf(bw, "[%s]\n", s.Name)
		}
		for _, l := range s.Lines {
			if l.Comment != "" {
				fmt.Fprintln(bw, l.Comment)
				continue
			}
			fmt.Fprintf(bw, "%s=%s\n", l.Key, l.Value)
		}
	}

	return bw.Flush()
}

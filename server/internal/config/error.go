package config

import "fmt"

// ParseError reports one problem found while reading a config file.
// Fatal errors (an unknown section name, or an unknown key inside a
// known section) stop parsing immediately per spec.md §6; non-fatal
// errors are collected and parsing continues to the end of the file.
type ParseError struct {
	File    string
	Line    int
	Message string
	Fatal   bool
}

func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<config>"
	}
	return fmt.Sprintf("%s:%d: %s", file, e.Line, e.Message)
}

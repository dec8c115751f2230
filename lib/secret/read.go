// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// FromEnv copies the value of the named environment variable into a
// Buffer. An unset or empty variable is an error. The value is taken
// verbatim: secrets may legitimately carry leading or trailing spaces.
func FromEnv(name string) (*Buffer, error) {
	if name == "" {
		return nil, fmt.Errorf("secret: environment variable name is empty")
	}
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}
	return NewFromBytes([]byte(value))
}

// ReadTerminal prints prompt to out and reads one line from the terminal
// on fd with echo disabled.
func ReadTerminal(fd int, prompt string, out io.Writer) (*Buffer, error) {
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("secret: cannot prompt, file descriptor %d is not a terminal", fd)
	}
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return nil, fmt.Errorf("secret: writing prompt: %w", err)
	}
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("secret: reading terminal: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("secret: empty input")
	}
	return NewFromBytes(data)
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/term"
)

var ErrNoKey = errors.New("no private key available")

// Prompt reads a secret without echo
type Prompt func(label string) (string, error)

// TerminalPrompt asks on the controlling terminal. It fails when stdin is not a terminal.
func TerminalPrompt(out io.Writer) Prompt {
	return func(label string) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("%w: stdin is not a terminal", ErrNoKey)
		}
		fmt.Fprint(out, label)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %v", err)
		}
		return string(secret), nil
	}
}

// LoadPrivateKey returns the hex secret from, in order, the configured environment variable,
// the configured key file, or prompt. A nil prompt skips the last source.
func (c Config) LoadPrivateKey(fs afero.Fs, prompt Prompt) (string, error) {
	if env := c.Account.PrivateKeyEnv; env != "" {
		if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if path := c.Account.PrivateKeyFile; path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return "", fmt.Errorf("failed to read key file: %v", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if prompt == nil {
		return "", ErrNoKey
	}
	secret, err := prompt("Private key (hex): ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secret), nil
}

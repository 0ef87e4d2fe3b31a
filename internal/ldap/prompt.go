package ldap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks a human for missing bind credentials.
type Prompter interface {
	// Prompt reads one line with echo on.
	Prompt(prompt string) (string, error)
	// PromptSecret reads one line with echo off. Echo is restored before it
	// returns, also on failure.
	PromptSecret(prompt string) ([]byte, error)
}

// terminalPrompter talks to the controlling terminal, falling back to the
// given reader when in is not a terminal.
type terminalPrompter struct {
	in  *os.File
	out io.Writer
	r   *bufio.Reader
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() Prompter {
	return &terminalPrompter{
		in:  os.Stdin,
		out: os.Stderr,
		r:   bufio.NewReader(os.Stdin),
	}
}

func (p *terminalPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", newError("prompt", ErrInvalidArgument, "cannot read input: %v", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *terminalPrompter) PromptSecret(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)
	defer fmt.Fprintln(p.out)

	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.r.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			return nil, newError("prompt", ErrInvalidArgument, "cannot read input: %v", err)
		}
		return trimNewline(line), nil
	}

	// ReadPassword disables echo and restores the previous state on return
	secret, err := term.ReadPassword(fd)
	if err != nil {
		return nil, newError("prompt", ErrInvalidArgument, "cannot read password: %v", err)
	}
	return secret, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// zero overwrites a credential buffer.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

type noPrompter struct{}

// NoPrompter fails every prompt. Non-interactive callers use it so that a
// missing credential is an error instead of a blocked read.
func NoPrompter() Prompter { return noPrompter{} }

func (noPrompter) Prompt(prompt string) (string, error) {
	return "", newError("prompt", ErrInvalidArgument, "interactive input disabled: %s", strings.TrimSpace(prompt))
}

func (noPrompter) PromptSecret(prompt string) ([]byte, error) {
	return nil, newError("prompt", ErrInvalidArgument, "interactive input disabled: %s", strings.TrimSpace(prompt))
}

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from the user. Passwords are read without echo
// when stdin is a terminal.
type prompter struct {
	in    *bufio.Reader
	out   io.Writer
	stdin *os.File // nil when input is not the process stdin
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		p.stdin = f
	}
	return p
}

// line prompts for a value. An empty answer returns def.
func (p *prompter) line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// required prompts until a non-empty value is given.
func (p *prompter) required(label string) (string, error) {
	for {
		v, err := p.line(label, "")
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintf(p.out, "  %s is required\n", label)
	}
}

// password prompts for a secret.
func (p *prompter) password(label string) (string, error) {
	if p.stdin != nil && term.IsTerminal(int(p.stdin.Fd())) {
		fmt.Fprintf(p.out, "%s: ", label)
		b, err := term.ReadPassword(int(p.stdin.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return p.line(label, "")
}

// confirm asks a yes/no question, defaulting to no.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question+" [y/N]", "")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

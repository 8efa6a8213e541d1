// Package prompt is the interactive-prompt collaborator contract (spec §1:
// "the interactive prompt library" is out of core scope, referenced only
// by contract). Two implementations ship: CLI (reads os.Stdin, grounded on
// kolide-launcher's cmd/launcher/uninstall.go promptUser) and
// NonInteractive (auto-selects a default, never blocks).
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openpackage/opkg/internal/opkgerr"
)

// Prompter is the narrow interface core packages depend on.
type Prompter interface {
	// Choose asks the user to pick one of options, returning the chosen
	// string. Returns a user-cancellation *opkgerr.Error if the user
	// cancels.
	Choose(ctx context.Context, question string, options []string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)
}

// CLI is a stdin/stdout Prompter, grounded on the teacher's
// bufio.NewReader(os.Stdin) confirmation idiom.
type CLI struct {
	In  io.Reader
	Out io.Writer
}

func (c CLI) reader() *bufio.Reader {
	return bufio.NewReader(c.In)
}

func (c CLI) Choose(_ context.Context, question string, options []string) (string, error) {
	fmt.Fprintf(c.Out, "\n%s\n", question)
	for i, opt := range options {
		fmt.Fprintf(c.Out, "  [%d] %s\n", i+1, opt)
	}
	fmt.Fprintf(c.Out, "Enter a number, or 'c' to cancel: ")

	line, err := c.reader().ReadString('\n')
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Filesystem, "read prompt response")
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "c") || strings.EqualFold(line, "cancel") {
		return "", opkgerr.New(opkgerr.UserCancellation, "user cancelled selection")
	}

	for i, opt := range options {
		if line == fmt.Sprintf("%d", i+1) {
			return opt, nil
		}
	}
	return "", opkgerr.New(opkgerr.Validation, "invalid selection: "+line)
}

func (c CLI) Confirm(_ context.Context, question string) (bool, error) {
	fmt.Fprintf(c.Out, "\n%s\nAre you sure?\nEnter YES<return> to continue: ", question)
	line, err := c.reader().ReadString('\n')
	if err != nil {
		return false, opkgerr.Wrap(err, opkgerr.Filesystem, "read prompt response")
	}
	line = strings.TrimSpace(line)
	return strings.EqualFold(line, "YES"), nil
}

// NonInteractive never blocks: Choose returns the first option
// (deterministic default) and Confirm returns DefaultConfirm. No command
// or test in this module constructs it; it matches "forced-default-yes in
// non-interactive mode" from spec §4.7 step 8.
type NonInteractive struct {
	DefaultConfirm bool
}

func (n NonInteractive) Choose(_ context.Context, _ string, options []string) (string, error) {
	if len(options) == 0 {
		return "", opkgerr.New(opkgerr.Validation, "no options to choose from")
	}
	return options[0], nil
}

func (n NonInteractive) Confirm(_ context.Context, _ string) (bool, error) {
	return n.DefaultConfirm, nil
}

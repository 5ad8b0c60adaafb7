package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/tui/styles"
)

// maxRetries bounds how often a line prompter re-asks after invalid input.
const maxRetries = 5

// LinePrompter implements Prompter over plain lines, for when stdin is not
// a terminal. End of input aborts the prompt.
type LinePrompter struct {
	lines *bufio.Scanner
	out   io.Writer
}

// NewLinePrompter creates a LinePrompter.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	return &LinePrompter{lines: sc, out: out}
}

func (p *LinePrompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !p.lines.Scan() {
		if err := p.lines.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errors.Wrap(errors.ErrAborted, "end of input")
	}
	return strings.TrimSpace(p.lines.Text()), nil
}

// Input implements Prompter.
func (p *LinePrompter) Input(ctx context.Context, q Question) (string, error) {
	for range maxRetries {
		fmt.Fprintln(p.out, styles.Question.Render(q.Text))
		if q.Hint != "" {
			fmt.Fprintln(p.out, styles.Hint.Render(q.Hint))
		}
		fmt.Fprint(p.out, "> ")

		line, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		if q.Validate != nil {
			if err := q.Validate(line); err != nil {
				fmt.Fprintln(p.out, styles.ErrorMsg.Render("Error: "+err.Error()))
				continue
			}
		}
		return line, nil
	}
	return "", errors.Wrapf(errors.ErrAborted, "no valid answer after %d tries", maxRetries)
}

// Confirm implements Prompter. An empty line takes the default.
func (p *LinePrompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	choices := "[y/N]"
	if defaultYes {
		choices = "[Y/n]"
	}
	for range maxRetries {
		fmt.Fprintf(p.out, "%s %s ", styles.Question.Render(question), choices)
		line, err := p.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, styles.ErrorMsg.Render("Please answer y or n"))
	}
	return false, errors.Wrapf(errors.ErrAborted, "no valid answer after %d tries", maxRetries)
}

// Select implements Prompter. Options are chosen by their 1-based number.
func (p *LinePrompter) Select(ctx context.Context, question string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.NewValidationError("nothing to select from").WithField("options")
	}
	for range maxRetries {
		fmt.Fprintln(p.out, styles.Question.Render(question))
		for i, opt := range options {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, opt)
		}
		fmt.Fprint(p.out, "> ")

		line, err := p.readLine(ctx)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(p.out, styles.ErrorMsg.Render(fmt.Sprintf("Enter a number from 1 to %d", len(options))))
	}
	return 0, errors.Wrapf(errors.ErrAborted, "no valid answer after %d tries", maxRetries)
}

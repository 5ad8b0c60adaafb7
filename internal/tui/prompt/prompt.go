// Package prompt asks the user one question at a time. On a terminal each
// question is a small bubbletea program; otherwise answers are read line by
// line.
package prompt

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// Prompter is how the wizard talks to the user.
type Prompter interface {
	// Input asks for a line of text, re-asking until Validate accepts it.
	Input(ctx context.Context, q Question) (string, error)
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
	// Select asks the user to pick one of options and returns its index.
	Select(ctx context.Context, question string, options []string) (int, error)
}

// Question describes a text prompt.
type Question struct {
	Text        string
	Placeholder string
	Hint        string
	// Secret hides the typed characters.
	Secret   bool
	Validate func(string) error
}

// TeaPrompter implements Prompter with bubbletea.
type TeaPrompter struct {
	in  io.Reader
	out io.Writer
}

// NewTeaPrompter creates a TeaPrompter reading keys from in and drawing to out.
func NewTeaPrompter(in io.Reader, out io.Writer) *TeaPrompter {
	return &TeaPrompter{in: in, out: out}
}

// Input implements Prompter.
func (p *TeaPrompter) Input(ctx context.Context, q Question) (string, error) {
	m, err := p.run(ctx, newInputModel(q))
	if err != nil {
		return "", err
	}
	return m.value(), nil
}

// Confirm implements Prompter.
func (p *TeaPrompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	m, err := p.run(ctx, newConfirmModel(question, defaultYes))
	if err != nil {
		return false, err
	}
	return m.yes, nil
}

// Select implements Prompter.
func (p *TeaPrompter) Select(ctx context.Context, question string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.NewValidationError("nothing to select from").WithField("options")
	}
	m, err := p.run(ctx, newSelectModel(question, options))
	if err != nil {
		return 0, err
	}
	return m.cursor, nil
}

func (p *TeaPrompter) run(ctx context.Context, m model) (model, error) {
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(p.in), tea.WithOutput(p.out))
	final, err := prog.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model{}, ctxErr
	}
	if err != nil {
		return model{}, fmt.Errorf("prompt failed: %w", err)
	}

	fm, ok := final.(model)
	if !ok {
		return model{}, fmt.Errorf("prompt returned unexpected model %T", final)
	}
	if fm.aborted {
		return fm, errors.ErrAborted
	}
	return fm, nil
}

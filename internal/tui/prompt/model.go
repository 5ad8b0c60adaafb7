package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/signal-setup/internal/tui/styles"
	"github.com/Iron-Ham/signal-setup/internal/util"
)

// maxAnswerWidth bounds the answer echoed after a question is done.
const maxAnswerWidth = 60

type kind int

const (
	kindInput kind = iota
	kindConfirm
	kindSelect
)

// model is the bubbletea model behind a single question.
type model struct {
	kind     kind
	question Question
	input    textinput.Model
	options  []string
	cursor   int
	yes      bool
	errMsg   string
	done     bool
	aborted  bool
}

func newInputModel(q Question) model {
	ti := textinput.New()
	ti.Placeholder = q.Placeholder
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Prompt = "> "
	if q.Secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()
	return model{kind: kindInput, question: q, input: ti}
}

func newConfirmModel(question string, defaultYes bool) model {
	return model{kind: kindConfirm, question: Question{Text: question}, yes: defaultYes}
}

func newSelectModel(question string, options []string) model {
	return model{kind: kindSelect, question: Question{Text: question}, options: options}
}

func (m model) value() string {
	return strings.TrimSpace(m.input.Value())
}

func (m model) Init() tea.Cmd {
	if m.kind == kindInput {
		return textinput.Blink
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.kind == kindInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	}

	switch m.kind {
	case kindConfirm:
		return m.updateConfirm(key)
	case kindSelect:
		return m.updateSelect(key)
	default:
		return m.updateInput(key)
	}
}

func (m model) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEnter {
		if m.question.Validate != nil {
			if err := m.question.Validate(m.value()); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		}
		m.done = true
		return m, tea.Quit
	}

	m.errMsg = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m model) updateConfirm(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "y", "Y":
		m.yes = true
	case "n", "N":
		m.yes = false
	case "left", "right", "tab", "h", "l":
		m.yes = !m.yes
		return m, nil
	case "enter":
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m model) updateSelect(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch s := key.String(); s {
	case "up", "k":
		m.cursor--
		if m.cursor < 0 {
			m.cursor = len(m.options) - 1
		}
	case "down", "j":
		m.cursor++
		if m.cursor >= len(m.options) {
			m.cursor = 0
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	default:
		// Digits pick an option directly.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if n := int(s[0] - '1'); n < len(m.options) {
				m.cursor = n
				m.done = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.aborted {
		return ""
	}
	if m.done {
		return styles.Question.Render(m.question.Text) + " " + styles.Primary.Render(m.answerText()) + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.Question.Render(m.question.Text))
	b.WriteString("\n")
	if m.question.Hint != "" {
		b.WriteString(styles.Hint.Render(m.question.Hint))
		b.WriteString("\n")
	}

	switch m.kind {
	case kindInput:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case kindConfirm:
		yes, no := styles.OptionItem, styles.OptionItem
		if m.yes {
			yes = styles.OptionItemSelected
		} else {
			no = styles.OptionItemSelected
		}
		b.WriteString(yes.Render("Yes") + " " + no.Render("No"))
		b.WriteString("\n")
	case kindSelect:
		for i, opt := range m.options {
			line := fmt.Sprintf("%d. %s", i+1, opt)
			if i == m.cursor {
				b.WriteString(styles.OptionItemSelected.Render("> " + line))
			} else {
				b.WriteString(styles.OptionItem.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	if m.errMsg != "" {
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m model) answerText() string {
	switch m.kind {
	case kindConfirm:
		if m.yes {
			return "yes"
		}
		return "no"
	case kindSelect:
		return m.options[m.cursor]
	default:
		if m.question.Secret {
			return strings.Repeat("•", len([]rune(m.value())))
		}
		return util.Truncate(m.value(), maxAnswerWidth)
	}
}

func (m model) renderHelp() string {
	keyStyle := styles.HelpKey
	switch m.kind {
	case kindConfirm:
		return styles.HelpBar.Render(
			keyStyle.Render("y/n") + " answer  " +
				keyStyle.Render("enter") + " accept  " +
				keyStyle.Render("esc") + " abort",
		)
	case kindSelect:
		return styles.HelpBar.Render(
			keyStyle.Render("j/k") + " move  " +
				keyStyle.Render("enter") + " choose  " +
				keyStyle.Render("esc") + " abort",
		)
	default:
		return styles.HelpBar.Render(
			keyStyle.Render("enter") + " submit  " +
				keyStyle.Render("esc") + " abort",
		)
	}
}

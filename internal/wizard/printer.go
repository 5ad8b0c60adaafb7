package wizard

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/tui/styles"
	"github.com/Iron-Ham/signal-setup/internal/util"
)

// printer writes styled progress lines for the user. Structured logs go to
// the logger instead.
type printer struct {
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	if out == nil {
		out = io.Discard
	}
	return &printer{out: out}
}

func (p *printer) line(style lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(p.out, style.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) step(format string, args ...any) {
	fmt.Fprintln(p.out)
	p.line(styles.Step, "==> "+format, args...)
}

func (p *printer) info(format string, args ...any) {
	p.line(styles.Text, format, args...)
}

func (p *printer) muted(format string, args ...any) {
	p.line(styles.Muted, format, args...)
}

func (p *printer) success(format string, args ...any) {
	p.line(styles.SuccessMsg, "✓ "+format, args...)
}

func (p *printer) warn(format string, args ...any) {
	p.line(styles.WarningMsg, "Warning: "+format, args...)
}

func (p *printer) failure(err error) {
	p.line(styles.ErrorMsg, "✗ %v", err)
}

func (p *printer) pin(pin account.Pin) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, styles.PinBox.Render("Registration lock PIN\n\n"+pin.Formatted()))
	p.muted("Store it in a password manager. It protects the number against re-registration by someone else.")
}

// maxDeviceName bounds the Name column.
const maxDeviceName = 32

// devices renders the linked devices as a table.
func (p *printer) devices(devices []account.DeviceRecord) {
	if len(devices) == 0 {
		p.muted("No devices linked")
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderColor)).
		Headers("ID", "Name", "Created", "Last seen")
	for _, d := range devices {
		name := d.Name
		if name == "" && d.ID == 1 {
			name = "(primary)"
		}
		t.Row(strconv.Itoa(d.ID), util.Truncate(name, maxDeviceName), formatDate(d.Created), formatDate(d.LastSeen))
	}
	fmt.Fprintln(p.out, t.String())
}

// summary prints the path the session took.
func (p *printer) summary(s *register.Session) {
	var b strings.Builder
	for i, st := range s.Path() {
		if i > 0 {
			b.WriteString(styles.Muted.Render(" → "))
		}
		name := st.String()
		b.WriteString(lipgloss.NewStyle().Foreground(styles.StateColor(name)).Render(styles.StateIcon(name) + " " + name))
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, styles.ContentBox.Render(b.String()))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

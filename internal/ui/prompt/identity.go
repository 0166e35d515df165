package prompt

import (
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/colorprofile"

	"github.com/raphi011/gitks/internal/ui/styles"
)

// IdentityResult holds the commit identity entered by the user.
type IdentityResult struct {
	Name      string
	Email     string
	Cancelled bool
}

const (
	fieldName = iota
	fieldEmail
)

type identityModel struct {
	inputs    [2]textinput.Model
	focus     int
	errMsg    string
	done      bool
	cancelled bool
}

func newIdentityModel(name, email string) identityModel {
	var m identityModel
	for i, label := range []string{"Name:  ", "Email: "} {
		ti := textinput.New()
		ti.Prompt = label
		ti.CharLimit = 156
		ti.SetWidth(50)
		m.inputs[i] = ti
	}
	m.inputs[fieldName].Placeholder = "Jane Doe"
	m.inputs[fieldName].SetValue(name)
	m.inputs[fieldEmail].Placeholder = "jane@example.com"
	m.inputs[fieldEmail].SetValue(email)
	m.inputs[fieldName].Focus()
	return m
}

func (m identityModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m identityModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyPressMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case "tab", "down":
			return m.setFocus((m.focus + 1) % len(m.inputs)), nil
		case "shift+tab", "up":
			return m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs)), nil
		case "enter":
			if strings.TrimSpace(m.inputs[m.focus].Value()) == "" {
				m.errMsg = "value required"
				return m, nil
			}
			m.errMsg = ""
			if m.focus < len(m.inputs)-1 {
				return m.setFocus(m.focus + 1), nil
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m identityModel) setFocus(i int) identityModel {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
	return m
}

func (m identityModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	var b strings.Builder
	b.WriteString(styles.Bold.Render("Commit identity for gitks") + "\n")
	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}
	if m.errMsg != "" {
		b.WriteString(styles.ErrorStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString(styles.MutedStyle.Render("enter to confirm, esc to cancel") + "\n")
	return tea.NewView(b.String())
}

func (m identityModel) result() IdentityResult {
	return IdentityResult{
		Name:      strings.TrimSpace(m.inputs[fieldName].Value()),
		Email:     strings.TrimSpace(m.inputs[fieldEmail].Value()),
		Cancelled: m.cancelled,
	}
}

// Identity asks for a commit name and email, pre-filled with the given
// values.
func Identity(name, email string) (IdentityResult, error) {
	profile := colorprofile.Detect(os.Stderr, os.Environ())
	p := tea.NewProgram(newIdentityModel(name, email),
		tea.WithOutput(os.Stderr),
		tea.WithColorProfile(profile),
	)
	finalModel, err := p.Run()
	if err != nil {
		return IdentityResult{}, err
	}
	return finalModel.(identityModel).result(), nil
}

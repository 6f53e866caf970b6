// Package prompt implements the side-channel prompt used to edit a raw
// citation link: a bubbletea text input on a terminal, a plain line reader
// otherwise.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/coolbeans/citelens/pkg/editlink"
)

// Terminal prompts on a terminal.
type Terminal struct {
	In    io.Reader
	Out   io.Writer
	Label string
	// Interactive selects the bubbletea input; when false a single line is
	// read from In.
	Interactive bool
}

// NewTerminal creates a prompt on stdin/stderr, interactive when stdin is a
// TTY.
func NewTerminal() *Terminal {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	return &Terminal{
		In:          os.Stdin,
		Out:         os.Stderr,
		Label:       "Edit link: ",
		Interactive: interactive,
	}
}

// Prompt shows initial with the cursor at the byte offset cursor and returns
// the accepted text. Esc and Ctrl+C cancel with editlink.ErrCancelled.
func (t *Terminal) Prompt(ctx context.Context, initial string, cursor int) (string, error) {
	if !t.Interactive {
		return t.promptLine(initial)
	}

	model := newEditModel(t.Label, initial, cursor)
	program := tea.NewProgram(model,
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
		tea.WithContext(ctx),
	)
	finalModel, err := program.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	result, ok := finalModel.(editModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.cancelled {
		return "", editlink.ErrCancelled
	}
	return result.input.Value(), nil
}

// promptLine prints the link and reads its replacement. An empty line keeps
// the link unchanged; end of input cancels.
func (t *Terminal) promptLine(initial string) (string, error) {
	fmt.Fprintf(t.Out, "%s%s\n> ", t.Label, initial)
	reader := bufio.NewReader(t.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", editlink.ErrCancelled
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return initial, nil
	}
	return line, nil
}

// editModel is the bubbletea model for a single-line edit.
type editModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func newEditModel(label, initial string, cursor int) editModel {
	input := textinput.New()
	input.Prompt = label
	input.CharLimit = 0
	input.SetValue(initial)
	input.Focus()
	cursor = max(0, min(cursor, len(initial)))
	input.SetCursor(utf8.RuneCountInString(initial[:cursor]))
	return editModel{input: input}
}

// Init starts the cursor blink.
func (m editModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key events.
func (m editModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.done = true
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the input line.
func (m editModel) View() string {
	if m.done {
		return ""
	}
	return m.input.View() + "\n"
}

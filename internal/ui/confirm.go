package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Confirm asks a yes/no question and blocks for the answer. The default is
// no: enter, escape, or anything other than y/yes declines. On a TTY this is
// an inline bubbletea prompt; otherwise it falls back to a plain line read so
// piped input still works.
func Confirm(question string) bool {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		m := confirmModel{question: question}
		result, err := tea.NewProgram(m).Run()
		if err == nil {
			if done, ok := result.(confirmModel); ok {
				return done.answer
			}
		}
	}
	return confirmLine(os.Stdin, os.Stdout, question)
}

// confirmLine reads one line from in and interprets it as a yes/no answer.
func confirmLine(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

type confirmModel struct {
	question string
	answer   bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.answer = true
			m.done = true
			return m, tea.Quit
		default:
			m.answer = false
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "no"
		if m.answer {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", m.question, Muted(answer))
	}
	return fmt.Sprintf("%s %s ", m.question, Muted("(y/N)"))
}

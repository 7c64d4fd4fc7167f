package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/openmined/themesync/internal/client/sync"
)

const (
	maxListedKeys = 15
	txtHelp       = "Press 'Enter' to select. 'Esc' or 'Ctrl+C' to abort."
)

var errPromptCancelled = errors.New("prompt cancelled by user")

// newPrompter returns the interactive prompter when attached to a terminal.
// Without one the client falls back to the configured strategy.
func newPrompter() sync.Prompter {
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return &tuiPrompter{}
}

type tuiPrompter struct{}

func (p *tuiPrompter) PromptStrategy(ctx context.Context, req sync.PromptRequest) (sync.Strategy, error) {
	model, err := tea.NewProgram(
		newPromptModel(req),
		tea.WithContext(ctx),
		tea.WithInput(os.Stdin),
		tea.WithOutput(os.Stderr),
	).Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}

	fm, ok := model.(promptModel)
	if !ok || fm.cancelled || fm.chosen == nil {
		return "", errPromptCancelled
	}
	return fm.chosen.Strategy, nil
}

type choiceItem struct {
	choice sync.Choice
}

func (i choiceItem) Title() string       { return i.choice.Label }
func (i choiceItem) Description() string { return "" }
func (i choiceItem) FilterValue() string { return i.choice.Label }

type promptModel struct {
	req       sync.PromptRequest
	list      list.Model
	chosen    *sync.Choice
	cancelled bool
}

func newPromptModel(req sync.PromptRequest) promptModel {
	items := make([]list.Item, len(req.Choices))
	for i, c := range req.Choices {
		items[i] = choiceItem{choice: c}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, 80, len(items)+2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return promptModel{req: req, list: l}
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if item, ok := m.list.SelectedItem().(choiceItem); ok {
				choice := item.choice
				m.chosen = &choice
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.req.Title))
	b.WriteString("\n\n")
	b.WriteString(renderKeys(m.req.Keys))
	b.WriteString("\n")

	if m.chosen != nil {
		b.WriteString(green.Render("> " + m.chosen.Label))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(gray.Render(txtHelp))
	b.WriteString("\n")
	return b.String()
}

func renderKeys(keys []string) string {
	var b strings.Builder
	for i, key := range keys {
		if i == maxListedKeys {
			b.WriteString(gray.Render(fmt.Sprintf("  ... and %d more", len(keys)-maxListedKeys)))
			b.WriteString("\n")
			break
		}
		b.WriteString(yellow.Render("  - " + key))
		b.WriteString("\n")
	}
	return b.String()
}

package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"xdao.co/docnotary/controller"
)

// Focus is the input region receiving keystrokes.
type Focus int

const (
	FocusForm Focus = iota
	FocusFileInput
	FocusLookupInput
)

// noticeMsg carries one status message from the controller.
type noticeMsg struct{ text string }

// actionDoneMsg reports that an action command returned.
type actionDoneMsg struct{ action string }

// Model is the bubbletea model for the notary screen.
type Model struct {
	ctx      context.Context
	ctrl     *controller.Controller
	notifier *Notifier
	keys     KeyMap

	focus       Focus
	fileInput   []rune
	lookupInput []rune

	// alerts queues messages not yet dismissed; the first is on screen.
	alerts []string

	width  int
	height int
}

// NewModel returns a model driving ctrl. notifier must be the one ctrl
// was built with.
func NewModel(ctx context.Context, ctrl *controller.Controller, notifier *Notifier) Model {
	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		notifier: notifier,
		keys:     DefaultKeyMap,
		width:    80,
		height:   24,
	}
}

// Init implements tea.Model. Starts listening for status messages.
func (model Model) Init() tea.Cmd {
	return listenForNotice(model.notifier.messages())
}

// listenForNotice returns a tea.Cmd that blocks until a status message
// arrives, then delivers it as a noticeMsg.
func listenForNotice(channel <-chan string) tea.Cmd {
	return func() tea.Msg {
		text, ok := <-channel
		if !ok {
			return nil
		}
		return noticeMsg{text: text}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		return model, nil

	case noticeMsg:
		model.alerts = append(model.alerts, message.text)
		return model, listenForNotice(model.notifier.messages())

	case actionDoneMsg:
		return model, nil

	case tea.KeyMsg:
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		// An open alert blocks everything else until dismissed.
		if len(model.alerts) > 0 {
			if key.Matches(message, model.keys.Dismiss) {
				model.alerts = model.alerts[1:]
			}
			return model, nil
		}
		if model.focus != FocusForm {
			return model.handleInputKeys(message)
		}
		return model.handleFormKeys(message)
	}
	return model, nil
}

func (model Model) handleFormKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.SelectFile):
		model.focus = FocusFileInput
	case key.Matches(message, model.keys.Lookup):
		model.focus = FocusLookupInput
	case key.Matches(message, model.keys.Notarize):
		return model, model.run("notarize", func(ctx context.Context) { _, _ = model.ctrl.Notarize(ctx) })
	case key.Matches(message, model.keys.Verify):
		return model, model.run("verify", func(ctx context.Context) { _, _ = model.ctrl.Verify(ctx) })
	}
	return model, nil
}

// handleInputKeys edits the focused single-line input.
func (model Model) handleInputKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := &model.fileInput
	if model.focus == FocusLookupInput {
		input = &model.lookupInput
	}

	switch {
	case key.Matches(message, model.keys.Cancel):
		model.focus = FocusForm
		return model, nil
	case key.Matches(message, model.keys.Submit):
		return model.submit()
	}

	switch message.Type {
	case tea.KeyRunes, tea.KeySpace:
		*input = append(*input, message.Runes...)
	case tea.KeyBackspace:
		if n := len(*input); n > 0 {
			*input = (*input)[:n-1]
		}
	case tea.KeyCtrlU:
		*input = nil
	}
	return model, nil
}

func (model Model) submit() (tea.Model, tea.Cmd) {
	focus := model.focus
	model.focus = FocusForm
	switch focus {
	case FocusFileInput:
		path := string(model.fileInput)
		return model, model.run("select_file", func(ctx context.Context) { _ = model.ctrl.SelectFile(ctx, path) })
	case FocusLookupInput:
		// The text goes to the controller as typed; an empty
		// submission produces the controller's prompt.
		model.ctrl.SetLookupHash(string(model.lookupInput))
		return model, model.run("lookup", func(ctx context.Context) { _, _ = model.ctrl.Lookup(ctx) })
	}
	return model, nil
}

// run executes fn off the UI goroutine. Its outcome arrives as a noticeMsg
// through the notifier.
func (model Model) run(action string, fn func(context.Context)) tea.Cmd {
	ctx := model.ctx
	return func() tea.Msg {
		fn(ctx)
		return actionDoneMsg{action: action}
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if len(model.alerts) > 0 {
		box := alertStyle.Render(model.alerts[0] + "\n\n" + helpStyle.Render("enter/esc: OK"))
		return lipgloss.Place(model.width, model.height, lipgloss.Center, lipgloss.Center, box)
	}

	state := model.ctrl.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Simple Digital Notary"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Connected Account: ") + monoStyle.Render(string(state.Account)) + "\n\n")

	fileLine := state.FileName
	if model.focus == FocusFileInput {
		fileLine = focusedInputStyle.Render(string(model.fileInput) + "_")
	}
	b.WriteString(labelStyle.Render("File: ") + fileLine + "\n")
	b.WriteString(labelStyle.Render("File Hash: ") + monoStyle.Render(string(state.FileHash)) + "\n")
	if state.FileCID != "" {
		b.WriteString(labelStyle.Render("CID: ") + monoStyle.Render(state.FileCID) + "\n")
	}
	b.WriteString("\n[n] Notarize Document   [v] Verify Document\n\n")
	status := state.Message
	if state.Pending > 0 {
		status = strings.TrimSpace(status + " (working...)")
	}
	b.WriteString(statusStyle.Render(status))

	main := panelStyle.Render(b.String())

	var d strings.Builder
	d.WriteString(titleStyle.Render("Check Document Details"))
	d.WriteString("\n\n")
	lookupLine := string(model.lookupInput)
	if model.focus == FocusLookupInput {
		lookupLine = focusedInputStyle.Render(lookupLine + "_")
	} else if lookupLine == "" {
		lookupLine = helpStyle.Render("Enter Document Hash")
	}
	d.WriteString(labelStyle.Render("Document Hash: ") + lookupLine + "\n\n")
	d.WriteString(model.ctrl.DetailsText(state))
	details := panelStyle.Render(d.String())

	return lipgloss.JoinVertical(lipgloss.Left, main, "", details, "", model.helpLine())
}

func (model Model) helpLine() string {
	var bindings []key.Binding
	if model.focus == FocusForm {
		bindings = []key.Binding{model.keys.SelectFile, model.keys.Notarize, model.keys.Verify, model.keys.Lookup, model.keys.Quit}
	} else {
		bindings = []key.Binding{model.keys.Submit, model.keys.Cancel}
	}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, "  "))
}

// Package tui is an interactive terminal view of one grocery list.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/client"
	"github.com/and161185/grocerly/internal/extract"
	"github.com/and161185/grocerly/internal/model"
)

// Actions are the store writes the view triggers.
type Actions interface {
	AddItem(ctx context.Context, listID uuid.UUID, name string, category *string) (model.Item, error)
	Toggle(ctx context.Context, listID, itemID uuid.UUID) (model.Item, error)
	Update(ctx context.Context, listID, itemID uuid.UUID, p model.ItemPatch) (model.Item, error)
	Delete(ctx context.Context, listID, itemID uuid.UUID) error
	Reconcile(ctx context.Context, listID uuid.UUID) error
}

type snapshotMsg client.Snapshot

type doneMsg struct{ err error }

type row struct {
	item    model.Item
	pending bool
}

func (r row) Title() string       { return r.item.Name }
func (r row) Description() string { return "" }
func (r row) FilterValue() string { return r.item.Name }

type delegate struct{}

func (delegate) Height() int                         { return 1 }
func (delegate) Spacing() int                        { return 0 }
func (delegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	r, _ := li.(row)
	box, text := mutedStyle.Render(boxUnchecked), r.item.Name
	if r.item.Checked {
		box, text = successStyle.Render(boxChecked), doneStyle.Render(text)
	}
	line := box + " " + text
	if r.item.Category != nil {
		line += " " + mutedStyle.Render("["+*r.item.Category+"]")
	}
	if r.pending {
		line += " " + pendingStyle.Render("•")
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type mode int

const (
	browsing mode = iota
	adding
	editing
)

// Model is the bubbletea model. Build it with New.
type Model struct {
	ctx     context.Context
	act     Actions
	listID  uuid.UUID
	name    string
	updates <-chan client.Snapshot

	list   list.Model
	input  textinput.Model
	mode   mode
	editID uuid.UUID
	online bool
	err    string
	width  int
	height int
}

var (
	addKey     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editKey    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	deleteKey  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	toggleKey  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "check"))
	refreshKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "sync"))
)

// New builds a view of listID. updates delivers store snapshots; a nil
// channel disables live refresh.
func New(ctx context.Context, act Actions, listID uuid.UUID, name string, updates <-chan client.Snapshot) Model {
	l := list.New(nil, delegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")
	extra := func() []key.Binding { return []key.Binding{toggleKey, addKey, editKey, deleteKey, refreshKey} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 100

	m := Model{ctx: ctx, act: act, listID: listID, name: name, updates: updates, list: l, input: ti, width: 80, height: 24}
	m.list.Title = m.title(nil)
	return m
}

func (m Model) title(items []model.Item) string {
	done := 0
	for _, it := range items {
		if it.Checked {
			done++
		}
	}
	status := errorStyle.Render("offline")
	if m.online {
		status = successStyle.Render("live")
	}
	return fmt.Sprintf("%s   %s %d  %s %d   %s",
		titleStyle.Render(m.name),
		successStyle.Render("✔"), done,
		accentStyle.Render("Total"), len(items),
		status,
	)
}

func (m Model) wait() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	ch := m.updates
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return doneMsg{err: fn(ctx)} }
}

// Init starts listening for snapshots and triggers a first sync.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.wait(), m.run(func(ctx context.Context) error { return m.act.Reconcile(ctx, m.listID) }))
}

func (m Model) selected() (model.Item, bool) {
	r, ok := m.list.SelectedItem().(row)
	return r.item, ok
}

// Update handles input and store snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case snapshotMsg:
		m.apply(client.Snapshot(msg))
		return m, m.wait()
	case doneMsg:
		m.err = ""
		if msg.err != nil && !errors.Is(msg.err, client.ErrQueued) {
			m.err = msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		if m.mode != browsing {
			return m.updateInput(msg)
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			if it, ok := m.selected(); ok {
				return m, m.run(func(ctx context.Context) error {
					_, err := m.act.Toggle(ctx, m.listID, it.ID)
					return err
				})
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				return m, m.run(func(ctx context.Context) error { return m.act.Delete(ctx, m.listID, it.ID) })
			}
			return m, nil
		case "a":
			m.mode = adding
			m.input.SetValue("")
			m.input.Placeholder = "New item..."
			m.input.Focus()
			return m, nil
		case "e":
			if it, ok := m.selected(); ok {
				m.mode, m.editID = editing, it.ID
				m.input.SetValue(it.Name)
				m.input.CursorEnd()
				m.input.Placeholder = "Item name..."
				m.input.Focus()
			}
			return m, nil
		case "r":
			return m, m.run(func(ctx context.Context) error { return m.act.Reconcile(ctx, m.listID) })
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = browsing
		m.input.Blur()
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.err = "Name cannot be empty"
			return m, nil
		}
		md, id := m.mode, m.editID
		m.mode = browsing
		m.input.Blur()
		m.input.SetValue("")
		if md == adding {
			return m, m.run(func(ctx context.Context) error {
				_, err := m.act.AddItem(ctx, m.listID, name, extract.Category(name))
				return err
			})
		}
		return m, m.run(func(ctx context.Context) error {
			_, err := m.act.Update(ctx, m.listID, id, model.ItemPatch{Name: &name})
			return err
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) apply(s client.Snapshot) {
	items := s.Items[m.listID]
	rows := make([]list.Item, len(items))
	for i, it := range items {
		rows[i] = row{item: it, pending: s.Pending[it.ID]}
	}
	m.online = s.Online
	m.list.SetItems(rows)
	m.list.Title = m.title(items)
}

// View renders the list, the input bar and the last error.
func (m Model) View() string {
	h := m.height - 4
	if m.mode != browsing {
		h -= 2
	}
	if m.err != "" {
		h--
	}
	m.list.SetSize(m.width-2, h)
	content := m.list.View()
	if m.mode != browsing {
		label := "Add item"
		if m.mode == editing {
			label = "Edit item"
		}
		content += "\n" + panelStyle.Render(label+"\n"+m.input.View())
	}
	if m.err != "" {
		content += "\n" + errorStyle.Render("✖ "+m.err)
	}
	return panelStyle.Render(content)
}

// Run shows listID until the user quits, refreshing from the store as
// changes arrive.
func Run(ctx context.Context, store *client.Store, listID uuid.UUID, name string) error {
	updates := make(chan client.Snapshot, 1)
	unsubscribe := store.Subscribe(func(s client.Snapshot) {
		// keep only the newest snapshot
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = store.Watch(ctx, listID) }()

	m := New(ctx, store, listID, name, updates)
	m.apply(store.Snapshot())
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

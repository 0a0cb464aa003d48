package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// editValues is bound to the form fields. It lives on the heap so copies of
// the modal share it.
type editValues struct {
	Title    string
	Subtitle string
}

// EditModal edits the title and subtitle of a node, or collects them for a
// new child when in create mode.
type EditModal struct {
	form         *huh.Form
	values       *editValues
	path         model.Path // node being edited, or the parent in create mode
	isCreateMode bool
	width        int

	saveRequested   bool
	cancelRequested bool
}

// NewEditModal creates a modal pre-populated from n.
func NewEditModal(n *model.Node, path model.Path) EditModal {
	v := &editValues{Title: n.Title, Subtitle: n.Subtitle}
	return EditModal{
		form:   newEditForm(v, "Edit node"),
		values: v,
		path:   path,
	}
}

// NewCreateModal creates an empty modal for a child of parentPath.
func NewCreateModal(parentPath model.Path) EditModal {
	v := &editValues{}
	return EditModal{
		form:         newEditForm(v, "New child"),
		values:       v,
		path:         parentPath,
		isCreateMode: true,
	}
}

func newEditForm(v *editValues, heading string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(heading).
				Description("Title").
				Value(&v.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewInput().
				Description("Subtitle (optional)").
				Value(&v.Subtitle),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(false)
}

// Init returns the form's initial command.
func (m EditModal) Init() tea.Cmd {
	return m.form.Init()
}

// SetWidth sets the form width.
func (m *EditModal) SetWidth(width int) {
	m.width = width
	m.form = m.form.WithWidth(width)
}

// Update forwards every message to the form; huh relies on its own message
// types for field navigation. Esc cancels.
func (m EditModal) Update(msg tea.Msg) (EditModal, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.cancelRequested = true
		return m, nil
	}

	updated, cmd := m.form.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.saveRequested = true
	case huh.StateAborted:
		m.cancelRequested = true
	}
	return m, cmd
}

func (m EditModal) View() string {
	return m.form.View()
}

// IsSaveRequested reports whether the form was submitted.
func (m EditModal) IsSaveRequested() bool {
	return m.saveRequested
}

// IsCancelRequested reports whether the form was dismissed.
func (m EditModal) IsCancelRequested() bool {
	return m.cancelRequested
}

// IsCreateMode reports whether the modal collects a new child.
func (m EditModal) IsCreateMode() bool {
	return m.isCreateMode
}

// Path returns the edited node's path, or the parent path in create mode.
func (m EditModal) Path() model.Path {
	return m.path
}

// Apply returns n with the edited fields, or n itself when nothing changed.
func (m EditModal) Apply(n *model.Node) *model.Node {
	title := strings.TrimSpace(m.values.Title)
	subtitle := strings.TrimSpace(m.values.Subtitle)
	if n.Title == title && n.Subtitle == subtitle {
		return n
	}
	c := n.Clone()
	c.Title = title
	c.Subtitle = subtitle
	return c
}

// NewNode returns the node described by the form.
func (m EditModal) NewNode() *model.Node {
	return &model.Node{
		Title:    strings.TrimSpace(m.values.Title),
		Subtitle: strings.TrimSpace(m.values.Subtitle),
	}
}

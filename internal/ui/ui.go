package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/models"
)

// Tab is the list currently shown.
type Tab int

const (
	MixesTab Tab = iota
	RequestsTab
)

func (t Tab) String() string {
	if t == RequestsTab {
		return "DJ requests"
	}
	return "Pending mixes"
}

// Reviewer applies moderation decisions. [tasks.Moderator] implements it.
type Reviewer interface {
	PendingQueue(ctx context.Context) ([]*models.Mix, []*models.DJRequest, error)
	ApproveMix(ctx context.Context, mixID, reviewerID string) (*models.Mix, error)
	RejectMix(ctx context.Context, mixID, reviewerID, reason string) (*models.Mix, error)
	ApproveDJRequest(ctx context.Context, requestID, reviewerID string) (*models.DJRequest, error)
	RejectDJRequest(ctx context.Context, requestID, reviewerID string) (*models.DJRequest, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	reviewer   Reviewer
	reviewerID string
	logger     *log.Logger

	tab       Tab
	mixes     list.Model
	requests  list.Model
	reason    textinput.Model
	rejecting bool
	loading   bool

	status string
	err    error

	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a moderation console acting as the admin reviewerID.
func NewModel(ctx context.Context, reviewer Reviewer, reviewerID string, logger *log.Logger) *Model {
	reason := textinput.New()
	reason.Placeholder = "reason (optional)"
	reason.CharLimit = 500
	reason.Prompt = "Reject: "

	return &Model{
		ctx:        ctx,
		reviewer:   reviewer,
		reviewerID: reviewerID,
		logger:     logger,
		tab:        MixesTab,
		mixes:      newList(MixesTab.String()),
		requests:   newList(RequestsTab.String()),
		reason:     reason,
		loading:    true,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

func newList(title string) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

// Init loads the pending queue.
func (m *Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.mixes.SetSize(msg.Width-4, msg.Height-8)
		m.requests.SetSize(msg.Width-4, msg.Height-8)
		m.reason.Width = max(20, msg.Width-12)
		return m, nil

	case tea.KeyMsg:
		if m.rejecting {
			return m.handleReasonKeys(msg)
		}
		return m.handleListKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgQueueLoaded:
			data := msg.data.(queueData)
			m.loading = false
			m.err = data.err
			if data.err == nil {
				m.setQueue(data.mixes, data.requests)
			}
			return m, nil
		case MsgReviewed:
			data := msg.data.(reviewData)
			if data.err != nil {
				m.err = data.err
				m.logger.Error("review failed", "action", data.action, "target", data.target, "error", data.err)
				return m, nil
			}
			m.err = nil
			m.status = fmt.Sprintf("%s %s", data.action, data.target)
			m.logger.Info("review applied", "action", data.action, "target", data.target, "reviewer", m.reviewerID)
			return m, m.loadQueue()
		}
	}

	return m.updateList(msg)
}

func (m *Model) handleReasonKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.rejecting = false
		m.reason.Blur()
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		m.rejecting = false
		m.reason.Blur()
		return m, m.reject(strings.TrimSpace(m.reason.Value()))
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.reason, cmd = m.reason.Update(msg)
	return m, cmd
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.activeList().FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		if m.tab == MixesTab {
			m.tab = RequestsTab
		} else {
			m.tab = MixesTab
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		return m, m.loadQueue()
	case key.Matches(msg, m.keys.approve):
		return m, m.approve()
	case key.Matches(msg, m.keys.reject):
		if m.activeList().SelectedItem() == nil {
			return m, nil
		}
		m.rejecting = true
		m.reason.SetValue("")
		return m, m.reason.Focus()
	}

	return m.updateList(msg)
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.tab == RequestsTab {
		m.requests, cmd = m.requests.Update(msg)
	} else {
		m.mixes, cmd = m.mixes.Update(msg)
	}
	return m, cmd
}

func (m *Model) activeList() *list.Model {
	if m.tab == RequestsTab {
		return &m.requests
	}
	return &m.mixes
}

func (m *Model) setQueue(mixes []*models.Mix, requests []*models.DJRequest) {
	mixItems := make([]list.Item, len(mixes))
	for i, mix := range mixes {
		mixItems[i] = mixItem{mix: mix}
	}
	requestItems := make([]list.Item, len(requests))
	for i, req := range requests {
		requestItems[i] = requestItem{req: req}
	}
	m.mixes.SetItems(mixItems)
	m.requests.SetItems(requestItems)
}

func (m *Model) loadQueue() tea.Cmd {
	return func() tea.Msg {
		mixes, requests, err := m.reviewer.PendingQueue(m.ctx)
		return queueLoadedMsg(mixes, requests, err)
	}
}

func (m *Model) approve() tea.Cmd {
	switch item := m.activeList().SelectedItem().(type) {
	case mixItem:
		return func() tea.Msg {
			_, err := m.reviewer.ApproveMix(m.ctx, item.mix.ID, m.reviewerID)
			return reviewedMsg("approved", fmt.Sprintf("%q", item.mix.Title), err)
		}
	case requestItem:
		return func() tea.Msg {
			_, err := m.reviewer.ApproveDJRequest(m.ctx, item.req.ID, m.reviewerID)
			return reviewedMsg("approved DJ request from", item.req.UserEmail, err)
		}
	default:
		return nil
	}
}

func (m *Model) reject(reason string) tea.Cmd {
	switch item := m.activeList().SelectedItem().(type) {
	case mixItem:
		return func() tea.Msg {
			_, err := m.reviewer.RejectMix(m.ctx, item.mix.ID, m.reviewerID, reason)
			return reviewedMsg("rejected", fmt.Sprintf("%q", item.mix.Title), err)
		}
	case requestItem:
		return func() tea.Msg {
			_, err := m.reviewer.RejectDJRequest(m.ctx, item.req.ID, m.reviewerID)
			return reviewedMsg("rejected DJ request from", item.req.UserEmail, err)
		}
	default:
		return nil
	}
}

// View renders the tabs, the active list and the status line.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(styles.help.Render("Loading queue..."))
	case len(m.activeList().Items()) == 0:
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ No %s to review", strings.ToLower(m.tab.String()))))
	default:
		b.WriteString(m.activeList().View())
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(styles.ok.Render("✓ " + m.status))
		b.WriteString("\n")
	}

	if m.rejecting {
		b.WriteString(styles.warn.Render(m.reason.View()))
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.confirm, m.keys.cancel}))
		return b.String()
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, tab := range []Tab{MixesTab, RequestsTab} {
		count := len(m.mixes.Items())
		if tab == RequestsTab {
			count = len(m.requests.Items())
		}
		label := fmt.Sprintf("%s (%d)", tab, count)
		if tab == m.tab {
			tabs = append(tabs, styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, styles.inactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

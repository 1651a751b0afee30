package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/rtc"
	"github.com/BioHazard786/peerlink/internal/utils"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxNotifications = 8

// Controller is the part of a peer.Session the UI drives.
type Controller interface {
	Begin(target string) (<-chan error, error)
	CloseChannel() error
	CloseConnection() error
	Snapshot() peer.Snapshot
	Send(data []byte) error
	Updates() <-chan peer.Update
}

type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
	levelMuted
)

type notification struct {
	at    time.Time
	level level
	text  string
}

type updateMsg peer.Update

type updatesClosedMsg struct{}

// SessionModel shows the session state and maps keys onto session
// operations. Keys whose operation is currently invalid are shown
// disabled and ignored.
type SessionModel struct {
	ctrl    Controller
	target  string
	snap    peer.Snapshot
	spinner spinner.Model
	notes   []notification
	pingSeq uint64
	now     func() time.Time

	quitting bool
}

func NewSessionModel(ctrl Controller, target string) *SessionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &SessionModel{
		ctrl:    ctrl,
		target:  target,
		snap:    ctrl.Snapshot(),
		spinner: s,
		now:     time.Now,
	}
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *SessionModel) listen() tea.Cmd {
	updates := m.ctrl.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		u := peer.Update(msg)
		m.snap = u.Snapshot
		m.describe(u)
		return m, m.listen()

	case updatesClosedMsg:
		m.snap = m.ctrl.Snapshot()
	}
	return m, nil
}

func (m *SessionModel) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "n":
		if !m.snap.CanBegin() {
			return nil
		}
		if _, err := m.ctrl.Begin(m.target); err != nil {
			m.notifyErr("Cannot negotiate", err)
			return nil
		}
		m.notify(levelInfo, "Negotiating with "+m.target)

	case "c":
		if !m.snap.CanCloseChannel() {
			return nil
		}
		if err := m.ctrl.CloseChannel(); err != nil {
			m.notifyErr("Close channel", err)
		}

	case "x":
		if !m.snap.CanCloseConnection() {
			return nil
		}
		if err := m.ctrl.CloseConnection(); err != nil {
			m.notifyErr("Close connection", err)
			return nil
		}
		m.notify(levelInfo, "Connection closed")

	case "p":
		if !m.snap.Usable() {
			return nil
		}
		m.pingSeq++
		frame, err := rtc.EncodePing(m.pingSeq, m.now())
		if err == nil {
			err = m.ctrl.Send(frame)
		}
		if err != nil {
			m.notifyErr("Ping", err)
			return nil
		}
		m.notify(levelMuted, fmt.Sprintf("ping #%d sent", m.pingSeq))
	}

	m.snap = m.ctrl.Snapshot()
	return nil
}

// describe turns an update into a notification line.
func (m *SessionModel) describe(u peer.Update) {
	switch u.Kind {
	case peer.UpdateState:
		if u.Detail != "" {
			m.notify(levelMuted, capitalize(u.Detail))
		}
	case peer.UpdateTransportState:
		m.notify(levelInfo, "Connection state: "+u.Detail)
	case peer.UpdateNegotiationFailed:
		m.notifyErr("Negotiation failed", u.Err)
	case peer.UpdateConnected:
		m.notify(levelSuccess, "Negotiation complete")
	case peer.UpdateChannelOpen:
		m.notify(levelSuccess, fmt.Sprintf("Channel %q open", u.Snapshot.ChannelLabel))
	case peer.UpdateChannelClosed:
		m.notify(levelWarning, "Channel closed")
	case peer.UpdateChannelFailed:
		m.notifyErr("Channel failed", u.Err)
	case peer.UpdateMessage:
		m.notify(levelInfo, m.describeMessage(u.Data))
	case peer.UpdateStaleEventIgnored:
		m.notify(levelMuted, "Ignored stale "+u.Detail)
	}
}

func (m *SessionModel) describeMessage(data []byte) string {
	msg, err := rtc.DecodeMessage(data)
	if err != nil {
		return "Received " + utils.FormatSize(int64(len(data)))
	}
	switch msg.Type {
	case rtc.TypePong:
		var p rtc.PingPayload
		if err := msg.DecodePayload(&p); err == nil {
			return fmt.Sprintf("pong #%d in %s", p.Seq, p.RTT(m.now()).Round(time.Millisecond))
		}
	case rtc.TypeText:
		var t rtc.TextPayload
		if err := msg.DecodePayload(&t); err == nil {
			return "Message: " + t.Body
		}
	}
	return fmt.Sprintf("Received %q message", msg.Type)
}

func (m *SessionModel) notify(l level, text string) {
	m.notes = append(m.notes, notification{at: m.now(), level: l, text: text})
	if len(m.notes) > maxNotifications {
		m.notes = m.notes[len(m.notes)-maxNotifications:]
	}
}

func (m *SessionModel) notifyErr(prefix string, err error) {
	l := levelError
	if errors.Is(err, peer.ErrInvalidOperation) {
		l = levelWarning
	}
	m.notify(l, fmt.Sprintf("%s: %v", prefix, err))
}

func (m *SessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(HeaderStyle.Render(IconConnect+" peerlink") + "\n")

	status := "Idle"
	switch {
	case m.snap.Negotiating:
		status = m.spinner.View() + " Negotiating"
	case m.snap.Usable():
		status = SuccessStyle.Render(IconChannel + " Channel open")
	case m.snap.Connection == peer.ConnectionConnected:
		status = m.spinner.View() + " Connected, channel " + m.snap.Channel.String()
	}
	b.WriteString(status + "\n\n")

	b.WriteString(SessionTableView(m.snap) + "\n\n")

	keys := []string{
		keyHelp("n", "negotiate", m.snap.CanBegin()),
		keyHelp("c", "close channel", m.snap.CanCloseChannel()),
		keyHelp("x", "close connection", m.snap.CanCloseConnection()),
		keyHelp("p", "ping", m.snap.Usable()),
		keyHelp("q", "quit", true),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, keys...) + "\n")

	if len(m.notes) > 0 {
		b.WriteString("\n" + TitleStyle.Render("Events") + "\n")
		for _, n := range m.notes {
			b.WriteString(MutedStyle.Render(n.at.Format(time.TimeOnly)) + " " + n.level.style().Render(n.text) + "\n")
		}
	}

	if m.target == "" {
		b.WriteString(FooterStyle.Render("No peer URL configured; set --peer or PEER_URL"))
	}
	return b.String()
}

func keyHelp(key, action string, enabled bool) string {
	if !enabled {
		return KeyDisabledStyle.Render(key+" "+action) + " "
	}
	return KeyStyle.Render(key) + " " + action + "  "
}

func (l level) style() lipgloss.Style {
	switch l {
	case levelSuccess:
		return SuccessStyle
	case levelWarning:
		return WarningStyle
	case levelError:
		return ErrorStyle
	case levelMuted:
		return MutedStyle
	}
	return lipgloss.NewStyle()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RunSession runs the interactive session view until the user quits.
func RunSession(ctrl Controller, target string) error {
	_, err := tea.NewProgram(NewSessionModel(ctrl, target)).Run()
	return err
}

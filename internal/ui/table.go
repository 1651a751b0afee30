package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"
)

// SessionTableView renders a snapshot as a two-column table.
func SessionTableView(snap peer.Snapshot) string {
	target := utils.TruncateString(snap.Target, 48)
	if target == "" {
		target = "-"
	}
	label := snap.ChannelLabel
	if label == "" {
		label = "-"
	}
	gathering := "pending"
	if snap.GatheringComplete {
		gathering = fmt.Sprintf("complete (%d candidates)", snap.Candidates)
	}

	rows := [][]string{
		{"Connection", stateCell(snap.Connection.String(), snap.Connection == peer.ConnectionConnected)},
		{"Transport", snap.Transport.String()},
		{"Channel", stateCell(snap.Channel.String(), snap.Channel == peer.ChannelOpen)},
		{"Label", label},
		{"Gathering", gathering},
		{"Negotiating", fmt.Sprintf("%t", snap.Negotiating)},
		{"Target", target},
		{"Usable", stateCell(fmt.Sprintf("%t", snap.Usable()), snap.Usable())},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Session", "State").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func stateCell(text string, good bool) string {
	if good {
		return SuccessStyle.Render(text)
	}
	return text
}

// PeerSummaryRow is one answered peer in the answer server's summary.
type PeerSummaryRow struct {
	ID         string
	State      string
	Channels   []string
	Messages   int
	AnsweredAt time.Time
}

// PeerSummaryView renders answered peers with go-pretty.
func PeerSummaryView(rows []PeerSummaryRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No peers answered")
	}

	t := pretty.NewWriter()
	t.SetStyle(pretty.StyleRounded)
	t.SetTitle(IconPeer + " Answered Peers")
	t.AppendHeader(pretty.Row{"#", "Peer", "State", "Channels", "Messages", "Answered"})
	for i, r := range rows {
		channels := strings.Join(r.Channels, ", ")
		if channels == "" {
			channels = "-"
		}
		t.AppendRow(pretty.Row{i + 1, r.ID, r.State, channels, r.Messages, r.AnsweredAt.Format(time.TimeOnly)})
	}
	t.AppendFooter(pretty.Row{"", "", "", "Total", totalMessages(rows), ""})
	return t.Render()
}

func totalMessages(rows []PeerSummaryRow) int {
	n := 0
	for _, r := range rows {
		n += r.Messages
	}
	return n
}

func RenderPeerSummary(rows []PeerSummaryRow) {
	fmt.Println(PeerSummaryView(rows))
}

// ListenInfoView announces where the answer server accepts offers.
func ListenInfoView(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	content := fmt.Sprintf("%s Answering offers\n\n%s HTTP:       %s\n%s WebSocket:  %s",
		IconConnect,
		IconWeb, BoldStyle.Foreground(Primary).Render("http://"+host+"/offer"),
		IconWeb, BoldStyle.Foreground(Primary).Render("ws://"+host+"/ws"),
	)
	return InfoBoxStyle.Render(content)
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workspace"
)

const columnWidth = 28

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	columnStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(columnWidth)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	speakerColor = []lipgloss.Color{"205", "141", "214", "42", "81", "220", "167"}

	categoryStyle = map[types.Category]lipgloss.Style{
		types.CategoryInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		types.CategorySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		types.CategoryWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.CategoryEmail:   lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
	priorityMark = map[types.Priority]string{
		types.PriorityHigh:   "!!",
		types.PriorityMedium: "!",
		types.PriorityLow:    "",
	}
)

// speakerStyle gives each agent a stable color by roster position.
func speakerStyle(agents []types.Agent, name string) lipgloss.Style {
	for i, a := range agents {
		if a.Name == name {
			return lipgloss.NewStyle().Bold(true).Foreground(speakerColor[i%len(speakerColor)])
		}
	}
	return titleStyle
}

// renderBoard lays the tasks out in one bordered column per status.
func renderBoard(tasks []types.Task, agents []types.Agent) string {
	names := make(map[types.AgentID]string, len(agents))
	for _, a := range agents {
		names[a.ID] = firstWord(a.Name)
	}

	byStatus := make(map[types.TaskStatus][]types.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	var cols []string
	for _, st := range types.Statuses() {
		var b strings.Builder
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", st, len(byStatus[st]))))
		for _, t := range byStatus[st] {
			b.WriteString("\n")
			b.WriteString(taskCard(t, names))
		}
		cols = append(cols, columnStyle.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func taskCard(t types.Task, names map[types.AgentID]string) string {
	title := t.Title
	if mark := priorityMark[t.Priority]; mark != "" {
		title = mark + " " + title
	}
	meta := []string{shortID(string(t.ID))}
	if n, ok := names[t.AssignedAgentID]; ok {
		meta = append(meta, "@"+n)
	}
	if t.Channel != "" {
		meta = append(meta, string(t.Channel))
	}
	if t.ApprovalStatus != "" && t.ApprovalStatus != types.ApprovalPending {
		meta = append(meta, string(t.ApprovalStatus))
	}
	return titleStyle.Render(title) + "\n" + mutedStyle.Render(strings.Join(meta, " "))
}

func renderNotification(n types.Notification) string {
	style, ok := categoryStyle[n.Category]
	if !ok {
		style = titleStyle
	}
	marker := " "
	if !n.Read {
		marker = "*"
	}
	return fmt.Sprintf("%s %s %s %s", marker, mutedStyle.Render(n.Timestamp.Format("15:04")), style.Render(n.Title), n.Message)
}

// echoNotifications prints every notification raised while a one-shot
// command runs. The returned function stops the echo.
func echoNotifications(store *workspace.Store, w io.Writer) func() {
	return store.Subscribe(func(ev workspace.Event) {
		if ev.Kind == workspace.EventNotification && ev.Notification != nil {
			fmt.Fprintln(w, renderNotification(*ev.Notification))
		}
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// TreeItem is one line of a task tree.
type TreeItem struct {
	Title   string
	Level   int
	IsLast  bool
	Running bool
	Done    bool
	Detail  string
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
)

// RenderTree renders items as an indented tree with right-aligned detail
// badges. Running items get a green ● prefix and completed items a dim ✔.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	contents := make([]string, len(items))
	width := 0
	for i, item := range items {
		var prefix string
		if item.Level > 0 {
			prefix = strings.Repeat(treePipe, item.Level-1)
			if item.IsLast {
				prefix += treeCorner
			} else {
				prefix += treeBranch
			}
		}

		title := item.Title
		switch {
		case item.Done:
			title = StyleGreen.Render("✔ ") + Dim(title)
		case item.Running:
			title = StyleGreen.Render("● ") + StyleBold.Render(title)
		}
		contents[i] = prefix + title
		width = max(width, lipgloss.Width(contents[i]))
	}

	var b strings.Builder
	for i, item := range items {
		b.WriteString(contents[i])
		if item.Detail != "" {
			pad := width - lipgloss.Width(contents[i])
			b.WriteString(strings.Repeat(" ", pad) + "  " + StyleBlue.Render(fmt.Sprintf("[ %s ]", item.Detail)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTaskTree renders a task with its subtasks. Each badge shows the
// closed-session total, plus the running value while a session is open.
func FormatTaskTree(task *domain.Owner, subtasks []*domain.Owner, now time.Time) string {
	items := []TreeItem{ownerTreeItem(task, 0, false, now)}
	for i, s := range subtasks {
		items = append(items, ownerTreeItem(s, 1, i == len(subtasks)-1, now))
	}
	return RenderTree(items)
}

func ownerTreeItem(o *domain.Owner, level int, last bool, now time.Time) TreeItem {
	title := o.ID
	if o.Name != "" && o.Name != o.ID {
		title += " " + o.Name
	}
	detail := FormatHours(o.ElapsedHours())
	if o.IsCompleted {
		detail = FormatHours(o.HoursWorked) + " billed"
	} else if o.HasOpenSession() {
		detail += " + " + FormatDuration(o.RunningFor(now))
	}
	return TreeItem{
		Title:   title,
		Level:   level,
		IsLast:  last,
		Running: o.HasOpenSession(),
		Done:    o.IsCompleted,
		Detail:  detail,
	}
}

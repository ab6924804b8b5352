package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2).
		PaddingTop(1).
		PaddingBottom(1)

	if title != "" {
		inner := StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content
		return boxStyle.Render(inner)
	}
	return boxStyle.Render(content)
}

// FormatDuration renders a duration as "1h 05m", "12m 30s" or "45s".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatHours renders fractional hours with two decimals, e.g. "1.50h".
func FormatHours(h float64) string {
	return fmt.Sprintf("%.2fh", h)
}

// KindBadge returns a colored owner kind label.
func KindBadge(k domain.OwnerKind) string {
	switch k {
	case domain.OwnerTask:
		return StyleBlue.Render("task")
	case domain.OwnerSubtask:
		return StylePurple.Render("subtask")
	case domain.OwnerEmployee:
		return StyleFg.Render("employee")
	default:
		return StyleDim.Render(string(k))
	}
}

// StatePill shows whether an owner is running, idle or done.
func StatePill(o *domain.Owner) string {
	switch {
	case o.IsCompleted:
		return StyleDim.Render("✔ Done")
	case o.HasOpenSession():
		return StyleGreen.Render("● Running")
	default:
		return StyleYellow.Render("○ Idle")
	}
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// HumanTimestamp returns a short relative timestamp such as "5m ago".
func HumanTimestamp(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return t.Format("15:04:05")
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

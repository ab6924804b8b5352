package formatter

import (
	"fmt"
	"strings"
)

// FormatShellWelcome renders the banner shown when the tracking shell starts.
func FormatShellWelcome() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(StylePurple.Render("  tempo") + "\n")
	b.WriteString(StyleDim.Render("  ─────────────────────────────") + "\n\n")
	b.WriteString("  " + StyleGreen.Render("start task t1") + StyleDim.Render("   Start tracking an owner") + "\n")
	b.WriteString("  " + StyleGreen.Render("pause task t1") + StyleDim.Render("   Stop tracking it") + "\n")
	b.WriteString("  " + StyleGreen.Render("status") + StyleDim.Render("          Show every owner") + "\n")
	b.WriteString("  " + StyleGreen.Render("help") + StyleDim.Render("            Show all commands") + "\n\n")
	return b.String()
}

type helpCategory struct {
	title    string
	commands [][]string
}

func renderHelpCategory(cat helpCategory) string {
	var b strings.Builder
	b.WriteString("\n " + StyleHeader.Render(strings.ToUpper(cat.title)) + "\n")
	for _, c := range cat.commands {
		b.WriteString(fmt.Sprintf("  %-24s %s\n",
			StyleGreen.Render(c[0]),
			StyleDim.Render(c[1])))
	}
	return b.String()
}

// FormatShellHelp renders the categorized command reference.
func FormatShellHelp() string {
	categories := []helpCategory{
		{
			title: "Tracking",
			commands: [][]string{
				{"start <kind> <id>", "Open a session (task, subtask, employee)"},
				{"pause <kind> <id>", "Close the open session"},
				{"complete <task-id>", "Pause subtasks and mark the task complete"},
			},
		},
		{
			title: "Inspection",
			commands: [][]string{
				{"status", "Owners, connectivity and pending count"},
				{"queue", "Actions waiting for the store"},
				{"refresh [<kind> <id>]", "Re-read owners from the store"},
			},
		},
		{
			title: "Connectivity",
			commands: [][]string{
				{"flush", "Replay the pending queue now"},
				{"offline", "Simulate losing the store"},
				{"online", "Reconnect and replay the queue"},
			},
		},
		{
			title: "Lifecycle",
			commands: [][]string{
				{"hide", "Run the unload guard as if backgrounded"},
				{"show", "Refresh after hide"},
				{"help", "Show this command reference"},
				{"exit / quit", "Flush, run the unload guard and leave"},
			},
		},
	}

	var b strings.Builder
	for _, cat := range categories {
		b.WriteString(renderHelpCategory(cat))
	}
	return RenderBox("Commands", b.String())
}

package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/connectivity"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/tracker"
)

// OwnerRow is the display row shared by the shell status table and the
// live watch view.
func OwnerRow(o *domain.Owner, now time.Time) []string {
	total := Dim("--")
	if h, ok := o.TotalWorkedHours(); ok {
		total = FormatHours(h)
	}
	running := Dim("--")
	if o.HasOpenSession() {
		running = StyleGreen.Render(FormatDuration(o.RunningFor(now)))
	}
	name := o.Name
	if o.ParentID != "" {
		name += Dim(" (" + o.ParentID + ")")
	}
	return []string{KindBadge(o.Kind), o.ID, name, StatePill(o), running, total}
}

var ownerHeaders = []string{"KIND", "ID", "NAME", "STATE", "RUNNING", "TOTAL"}

// FormatOwners renders the owner table. The running column is the live
// open-session value; the total covers closed sessions only.
func FormatOwners(owners []*domain.Owner, now time.Time) string {
	if len(owners) == 0 {
		return Dim("No owners loaded.") + "\n"
	}
	rows := make([][]string, 0, len(owners))
	for _, o := range owners {
		rows = append(rows, OwnerRow(o, now))
	}
	return RenderTable(ownerHeaders, rows)
}

// FormatStatus renders the shell status view.
func FormatStatus(owners []*domain.Owner, status connectivity.Status, pending int, now time.Time) string {
	var b strings.Builder
	b.WriteString(ConnectivityPill(status))
	if pending > 0 {
		b.WriteString("  " + StyleYellow.Render(fmt.Sprintf("%d pending", pending)))
	}
	b.WriteString("\n\n")
	b.WriteString(FormatOwners(owners, now))
	return b.String()
}

// FormatResult renders one settled command, e.g. "start task:t1 confirmed".
func FormatResult(r tracker.Result) string {
	line := fmt.Sprintf("%s %s", r.Command, OutcomeStyle(r.Outcome).Render(r.Outcome.String()))
	switch r.Outcome {
	case tracker.OutcomeQueued:
		line += Dim("  store unreachable, will retry when back online")
	case tracker.OutcomeRolledBack:
		if r.Err != nil {
			line += "  " + StyleRed.Render(r.Err.Error())
		}
	case tracker.OutcomeNoop:
		line += Dim("  nothing to do")
	}
	return line
}

// FormatQueue renders the pending actions in replay order.
func FormatQueue(actions []domain.PendingAction, now time.Time) string {
	if len(actions) == 0 {
		return Dim("Queue is empty.") + "\n"
	}
	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []string{
			strconv.FormatUint(a.Seq, 10),
			string(a.Kind),
			a.Owner.String(),
			HumanTimestamp(a.IssuedAt, now),
		})
	}
	return RenderTable([]string{"SEQ", "ACTION", "OWNER", "ISSUED"}, rows)
}

// FormatFlushReport summarizes a flush.
func FormatFlushReport(r tracker.FlushReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s replayed", StyleGreen.Render(strconv.Itoa(len(r.Replayed))))
	if len(r.Dropped) > 0 {
		fmt.Fprintf(&b, ", %s dropped", StyleRed.Render(strconv.Itoa(len(r.Dropped))))
	}
	if r.Remaining > 0 {
		fmt.Fprintf(&b, ", %s still pending", StyleYellow.Render(strconv.Itoa(r.Remaining)))
	}
	b.WriteString("\n")
	for _, d := range r.Dropped {
		fmt.Fprintf(&b, "  %s %s  %s\n", d.Action.Kind, d.Action.Owner, StyleRed.Render(d.Err.Error()))
	}
	return b.String()
}

// FormatCompletion renders a completed task with its cascade.
func FormatCompletion(c *tracker.Completion) string {
	var b strings.Builder
	for _, r := range c.Paused {
		b.WriteString("  " + FormatResult(r) + "\n")
	}
	fmt.Fprintf(&b, "%s %s completed, %s worked\n",
		StyleGreen.Render("✔"), Bold(c.Task.ID), FormatHours(c.HoursWorked))
	return b.String()
}

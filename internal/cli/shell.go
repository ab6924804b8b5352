package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/alexanderramin/tempo/internal/tracking"
)

// trackShell executes one shell line at a time against a tracking runtime.
// The readline loop lives in runTrack; everything here writes to out.
type trackShell struct {
	rt  *tracking.Runtime
	out io.Writer
	now func() time.Time

	// forceOffline cuts the transport for the offline/online commands.
	forceOffline func(bool)
}

func newTrackShell(rt *tracking.Runtime, out io.Writer, now func() time.Time, forceOffline func(bool)) *trackShell {
	return &trackShell{rt: rt, out: out, now: now, forceOffline: forceOffline}
}

// exec runs one line and reports whether the shell should exit.
func (s *trackShell) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "start", "pause":
		s.execCommand(ctx, domain.ActionKind(cmd), args)
	case "complete":
		s.execComplete(ctx, args)
	case "status", "ls":
		s.execStatus()
	case "tree":
		s.execTree(args)
	case "queue", "q":
		fmt.Fprint(s.out, formatter.FormatQueue(s.rt.Queue.Snapshot(), s.now()))
	case "flush":
		s.execFlush(ctx)
	case "refresh":
		s.execRefresh(ctx, args)
	case "offline":
		s.execOffline()
	case "online":
		s.execOnline(ctx)
	case "hide":
		s.execHide()
	case "show":
		s.execShow(ctx)
	case "help", "?":
		fmt.Fprintln(s.out, formatter.FormatShellHelp())
	case "exit", "quit":
		fmt.Fprintln(s.out, formatter.Dim("Goodbye."))
		return true
	default:
		s.errorf("unknown command %q (type 'help' for commands)", cmd)
	}
	return false
}

func (s *trackShell) errorf(format string, args ...any) {
	fmt.Fprintln(s.out, formatter.StyleRed.Render("Error: "+fmt.Sprintf(format, args...)))
}

// parseRef accepts "kind id" or "kind:id".
func parseRef(args []string) (domain.OwnerRef, error) {
	switch len(args) {
	case 1:
		return domain.ParseOwnerRef(args[0])
	case 2:
		kind, err := domain.ParseOwnerKind(strings.ToLower(args[0]))
		if err != nil {
			return domain.OwnerRef{}, err
		}
		return domain.OwnerRef{Kind: kind, ID: args[1]}, nil
	default:
		return domain.OwnerRef{}, fmt.Errorf("expected <kind> <id>")
	}
}

func (s *trackShell) execCommand(ctx context.Context, action domain.ActionKind, args []string) {
	ref, err := parseRef(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	res := <-s.rt.Engine.Submit(ctx, tracker.Command{Action: action, Owner: ref})
	fmt.Fprintln(s.out, formatter.FormatResult(res))
}

func (s *trackShell) execComplete(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.errorf("usage: complete <task-id>")
		return
	}
	c, err := s.rt.Engine.Complete(ctx, args[0])
	if err != nil {
		s.errorf("%v", err)
		return
	}
	fmt.Fprint(s.out, formatter.FormatCompletion(c))
}

func (s *trackShell) owners() []*domain.Owner {
	var owners []*domain.Owner
	for _, k := range domain.OwnerKinds {
		owners = append(owners, s.rt.Registry.List(k)...)
	}
	return owners
}

func (s *trackShell) execStatus() {
	fmt.Fprint(s.out, formatter.FormatStatus(s.owners(), s.rt.Monitor.Status(), s.rt.Queue.Len(), s.now()))
}

func (s *trackShell) execTree(args []string) {
	if len(args) != 1 {
		s.errorf("usage: tree <task-id>")
		return
	}
	task, ok := s.rt.Registry.Get(domain.OwnerRef{Kind: domain.OwnerTask, ID: args[0]})
	if !ok {
		s.errorf("task %s is not loaded", args[0])
		return
	}
	var subtasks []*domain.Owner
	for _, st := range s.rt.Registry.List(domain.OwnerSubtask) {
		if st.ParentID == task.ID {
			subtasks = append(subtasks, st)
		}
	}
	fmt.Fprint(s.out, formatter.FormatTaskTree(task, subtasks, s.now()))
}

func (s *trackShell) execFlush(ctx context.Context) {
	report, err := s.rt.Engine.FlushPending(ctx)
	fmt.Fprint(s.out, formatter.FormatFlushReport(report))
	if err != nil {
		fmt.Fprintln(s.out, formatter.StyleYellow.Render("Flush stopped: "+err.Error()))
	}
}

func (s *trackShell) execRefresh(ctx context.Context, args []string) {
	if len(args) == 0 {
		if err := s.rt.Engine.Load(ctx); err != nil {
			s.errorf("%v", err)
			return
		}
		fmt.Fprintf(s.out, "Loaded %d owners\n", s.rt.Registry.Len())
		return
	}
	ref, err := parseRef(args)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	if err := s.rt.Engine.Refresh(ctx, ref); err != nil {
		s.errorf("%v", err)
		return
	}
	fmt.Fprintf(s.out, "Refreshed %s\n", ref)
}

func (s *trackShell) execOffline() {
	if s.forceOffline != nil {
		s.forceOffline(true)
	}
	s.rt.Monitor.SetOffline()
	fmt.Fprintln(s.out, formatter.ConnectivityPill(s.rt.Monitor.Status()))
}

func (s *trackShell) execOnline(ctx context.Context) {
	if s.forceOffline != nil {
		s.forceOffline(false)
	}
	pending := s.rt.Queue.Len()
	err := s.rt.Monitor.SetOnline(ctx)
	fmt.Fprintln(s.out, formatter.ConnectivityPill(s.rt.Monitor.Status()))
	if err != nil {
		fmt.Fprintln(s.out, formatter.StyleYellow.Render("Replay incomplete: "+err.Error()))
		return
	}
	if replayed := pending - s.rt.Queue.Len(); replayed > 0 {
		fmt.Fprintf(s.out, "Replayed %d pending actions\n", replayed)
	}
}

func (s *trackShell) execHide() {
	report := s.rt.Hide()
	fmt.Fprintf(s.out, "Beaconed %d, recorded %d\n", len(report.Beaconed), len(report.Recorded))
}

func (s *trackShell) execShow(ctx context.Context) {
	if err := s.rt.Show(ctx); err != nil {
		s.errorf("%v", err)
		return
	}
	fmt.Fprintf(s.out, "Loaded %d owners\n", s.rt.Registry.Len())
}

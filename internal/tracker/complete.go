package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Completion reports a task completion.
type Completion struct {
	Task        *domain.Owner
	HoursWorked float64
	// Paused holds the result of every subtask pause the cascade issued.
	Paused []Result
}

// Complete pauses every running subtask of taskID, re-reads the task and its
// subtasks, and records completion with the summed subtask hours.
//
// Subtask pause failures are logged and do not stop completion. A failed
// re-read does: hours computed from stale sessions would be wrong.
func (e *Engine) Complete(ctx context.Context, taskID string) (c *Completion, err error) {
	ref := domain.OwnerRef{Kind: domain.OwnerTask, ID: taskID}
	done := telemetry.Track(ctx, e.observer, "complete", map[string]any{"owner": ref.String()})
	defer func() { done(err) }()

	if e.completer == nil {
		return nil, ErrNoCompleter
	}

	if _, err := e.ensureOwner(ctx, ref); err != nil {
		return nil, wrapf(err, "completing task %s", taskID)
	}
	task, err := e.refreshFamily(ctx, ref)
	if err != nil {
		return nil, wrapf(err, "completing task %s", taskID)
	}

	c = &Completion{}
	var mu sync.Mutex
	var g errgroup.Group
	for _, sid := range e.subtaskIDs(task) {
		sref := domain.OwnerRef{Kind: domain.OwnerSubtask, ID: sid}
		sub, ok := e.registry.Get(sref)
		if !ok || !sub.HasOpenSession() {
			continue
		}
		g.Go(func() error {
			r, perr := e.Pause(ctx, sref)
			if perr != nil {
				e.logger.WarnContext(ctx, "pausing subtask before completion",
					"task", taskID, "subtask", sid, "outcome", r.Outcome.String(), "error", perr)
			}
			mu.Lock()
			c.Paused = append(c.Paused, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(c.Paused, func(i, j int) bool { return c.Paused[i].Command.Owner.ID < c.Paused[j].Command.Owner.ID })

	if err := e.Refresh(ctx, ref); err != nil {
		return nil, wrapf(err, "re-reading task %s", taskID)
	}
	task, ok := e.registry.Get(ref)
	if !ok {
		return nil, wrapf(domain.ErrOwnerNotFound, "re-reading task %s", taskID)
	}

	var hours float64
	for _, sid := range e.subtaskIDs(task) {
		sref := domain.OwnerRef{Kind: domain.OwnerSubtask, ID: sid}
		if e.queue.HasPending(sref) {
			return nil, &domain.NetworkError{Op: "complete", Err: ErrAwaitingReplay}
		}
		if err := e.Refresh(ctx, sref); err != nil {
			return nil, wrapf(err, "re-reading subtask %s", sid)
		}
		sub, ok := e.registry.Get(sref)
		if !ok {
			continue
		}
		hours += sub.ElapsedHours()
	}

	updated, err := e.completer.CompleteTask(ctx, taskID, e.now(), hours)
	if err != nil {
		err = classify("complete", err)
		if IsRetryable(err) {
			e.reportNetwork(err)
		}
		return nil, err
	}
	e.lanes.do(ref, func() { e.registry.Upsert(updated) })

	c.Task = updated.Clone()
	c.HoursWorked = hours
	return c, nil
}

// refreshFamily re-reads the task and every subtask it names so the cascade
// sees sessions started since the last load. An unreachable store leaves the
// cached copies in place; the re-read after the cascade decides whether the
// completion can go ahead.
func (e *Engine) refreshFamily(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	if err := e.Refresh(ctx, ref); err != nil && !IsRetryable(err) {
		return nil, err
	}
	task, ok := e.registry.Get(ref)
	if !ok {
		return nil, domain.ErrOwnerNotFound
	}

	var g errgroup.Group
	for _, sid := range e.subtaskIDs(task) {
		sref := domain.OwnerRef{Kind: domain.OwnerSubtask, ID: sid}
		g.Go(func() error {
			// Failures are logged by reconcile; the cached state stands.
			_ = e.Refresh(ctx, sref)
			return nil
		})
	}
	_ = g.Wait()
	return task, nil
}

// subtaskIDs merges the task's own list with any cached subtask that names
// it as parent.
func (e *Engine) subtaskIDs(task *domain.Owner) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range task.SubtaskIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, sub := range e.registry.List(domain.OwnerSubtask) {
		if sub.ParentID == task.ID && !seen[sub.ID] {
			seen[sub.ID] = true
			ids = append(ids, sub.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

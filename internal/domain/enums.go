package domain

import "fmt"

type OwnerKind string

const (
	OwnerTask     OwnerKind = "task"
	OwnerSubtask  OwnerKind = "subtask"
	OwnerEmployee OwnerKind = "employee"
)

// ValidOwnerKinds is the canonical set of accepted owner kinds.
var ValidOwnerKinds = map[OwnerKind]bool{
	OwnerTask: true, OwnerSubtask: true, OwnerEmployee: true,
}

// OwnerKinds lists every kind in a stable order.
var OwnerKinds = []OwnerKind{OwnerTask, OwnerSubtask, OwnerEmployee}

func ParseOwnerKind(s string) (OwnerKind, error) {
	k := OwnerKind(s)
	if !ValidOwnerKinds[k] {
		return "", fmt.Errorf("unknown owner kind %q", s)
	}
	return k, nil
}

type ActionKind string

const (
	ActionStart ActionKind = "start"
	ActionPause ActionKind = "pause"
)

package tracker

import "github.com/alexanderramin/tempo/internal/domain"

// UnloadStrategy says how an open session is protected when the client goes
// away without pausing it.
type UnloadStrategy int

const (
	UnloadNone UnloadStrategy = iota
	UnloadBeacon
	UnloadLedger
)

// OwnerCapability captures the few places where owner kinds differ. The
// engine itself treats every kind the same way.
type OwnerCapability interface {
	Kind() domain.OwnerKind
	TracksTotal() bool
	Completable() bool
	Unload() UnloadStrategy
}

type taskCapability struct{}

func (taskCapability) Kind() domain.OwnerKind { return domain.OwnerTask }
func (taskCapability) TracksTotal() bool { return true }
func (taskCapability) Completable() bool { return true }
func (taskCapability) Unload() UnloadStrategy { return UnloadBeacon }

type subtaskCapability struct{}

func (subtaskCapability) Kind() domain.OwnerKind { return domain.OwnerSubtask }
func (subtaskCapability) TracksTotal() bool { return true }
func (subtaskCapability) Completable() bool { return false }
func (subtaskCapability) Unload() UnloadStrategy { return UnloadLedger }

type employeeCapability struct{}

func (employeeCapability) Kind() domain.OwnerKind { return domain.OwnerEmployee }
func (employeeCapability) TracksTotal() bool { return false }
func (employeeCapability) Completable() bool { return false }
func (employeeCapability) Unload() UnloadStrategy { return UnloadNone }

var capabilities = map[domain.OwnerKind]OwnerCapability{
	domain.OwnerTask:     taskCapability{},
	domain.OwnerSubtask:  subtaskCapability{},
	domain.OwnerEmployee: employeeCapability{},
}

// Capability returns the adapter for kind, or nil for an unknown kind.
func Capability(kind domain.OwnerKind) OwnerCapability {
	return capabilities[kind]
}

package cli

import (
	"testing"

	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/stretchr/testify/assert"
)

func complete(t *testing.T, registry *tracker.Registry, line string) []string {
	t.Helper()
	c := newShellCompleter(func() *tracker.Registry { return registry })
	candidates, _ := c.Do([]rune(line), len([]rune(line)))
	out := make([]string, 0, len(candidates))
	for _, r := range candidates {
		out = append(out, string(r))
	}
	return out
}

func TestShellCompleter_CommandNames(t *testing.T) {
	got := complete(t, nil, "st")
	assert.Len(t, got, 2) // start, status
}

func TestShellCompleter_OwnerIDsFromRegistry(t *testing.T) {
	f := newShellFixture(t)

	got := complete(t, f.rt.Registry, "start subtask s")
	assert.Len(t, got, 2)

	got = complete(t, f.rt.Registry, "complete t")
	assert.Len(t, got, 1)
}

func TestShellCompleter_NoRegistryYet(t *testing.T) {
	assert.Empty(t, complete(t, nil, "pause task "))
}

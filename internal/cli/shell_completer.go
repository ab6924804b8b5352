package cli

import (
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/chzyer/readline"
)

// ownerIDs completes ids of loaded owners of one kind.
func ownerIDs(registry func() *tracker.Registry, kind domain.OwnerKind) readline.DynamicCompleteFunc {
	return func(string) []string {
		r := registry()
		if r == nil {
			return nil
		}
		owners := r.List(kind)
		ids := make([]string, 0, len(owners))
		for _, o := range owners {
			ids = append(ids, o.ID)
		}
		return ids
	}
}

func kindItems(registry func() *tracker.Registry) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(domain.OwnerKinds))
	for _, k := range domain.OwnerKinds {
		items = append(items, readline.PcItem(string(k), readline.PcItemDynamic(ownerIDs(registry, k))))
	}
	return items
}

// newShellCompleter completes command names, owner kinds and the ids of
// owners currently in the registry.
func newShellCompleter(registry func() *tracker.Registry) *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("start", kindItems(registry)...),
		readline.PcItem("pause", kindItems(registry)...),
		readline.PcItem("refresh", kindItems(registry)...),
		readline.PcItem("complete", readline.PcItemDynamic(ownerIDs(registry, domain.OwnerTask))),
		readline.PcItem("tree", readline.PcItemDynamic(ownerIDs(registry, domain.OwnerTask))),
		readline.PcItem("status"),
		readline.PcItem("queue"),
		readline.PcItem("flush"),
		readline.PcItem("offline"),
		readline.PcItem("online"),
		readline.PcItem("hide"),
		readline.PcItem("show"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

package nwk

import (
	"fmt"
	"strings"

	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// TraceRoute walks the routing tables of every stack known to the
// registry, starting at src, and returns the hop sequence from src to
// dst (§4.5 "Trace route"); PrintRoute renders it. It terminates on an unreachable next hop
// (0xFFFF) or when the current node equals dst, and always bounds
// itself against revisiting a node to guard against a routing loop
// that the spec's failure semantics do not otherwise rule out.
func (r *Registry) TraceRoute(src, dst nwkaddr.Addr) ([]nwkaddr.Addr, error) {
	hops := []nwkaddr.Addr{src}
	visited := map[nwkaddr.Addr]bool{src: true}
	current := src

	for current != dst {
		node, ok := r.Lookup(current)
		if !ok {
			return hops, fmt.Errorf("nwk: trace-route: node %v not known to registry", current)
		}
		entry, ok := node.routing.Lookup(dst, node.sim.Now())
		if !ok || entry.Status != tables.Active || entry.NextHop == nwkaddr.Unassigned {
			return hops, fmt.Errorf("nwk: trace-route: no route from %v to %v", current, dst)
		}
		next := entry.NextHop
		if visited[next] {
			return hops, fmt.Errorf("nwk: trace-route: routing loop detected at %v", next)
		}
		hops = append(hops, next)
		visited[next] = true
		current = next
	}
	return hops, nil
}

// PrintRoute renders hops in the conventional "A -> B -> C" form.
func PrintRoute(hops []nwkaddr.Addr) string {
	parts := make([]string, len(hops))
	for i, h := range hops {
		parts[i] = h.String()
	}
	return strings.Join(parts, " -> ")
}

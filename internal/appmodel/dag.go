package appmodel

import (
	"errors"
	"sort"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
)

// TopoSort orders the given app ids by their depends_on edges within cfg
// using Kahn's algorithm. It returns ConfigInvalid with a "cycle" detail on
// any cycle, and ConfigInvalid on a reference to an unknown sibling id.
func TopoSort(cfg *Configuration, ids []string) ([]string, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	indegree := make(map[string]int, len(set))
	adj := make(map[string][]string, len(set))
	for id := range set {
		indegree[id] = 0
	}
	for id := range set {
		app := cfg.AppByID(id)
		if app == nil {
			return nil, apperror.New(apperror.ConfigInvalid, "unknown app id: "+id)
		}
		for _, dep := range app.DependsOn {
			if cfg.AppByID(dep) == nil {
				return nil, apperror.New(apperror.ConfigInvalid, "unknown dependency id: "+dep)
			}
			if !set[dep] {
				continue
			}
			adj[dep] = append(adj[dep], id)
			indegree[id]++
		}
	}

	var queue []string
	for id := range indegree {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		next := append([]string(nil), adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(set) {
		var cycle []string
		for id, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, apperror.WithDetails(apperror.ConfigInvalid, "dependency cycle detected", map[string]any{"cycle": cycle})
	}
	return order, nil
}

// ExtendByDependencies returns ids plus the transitive closure of their
// depends_on edges within cfg.
func ExtendByDependencies(cfg *Configuration, ids []string) ([]string, error) {
	seen := make(map[string]bool)
	var stack []string
	for _, id := range ids {
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		app := cfg.AppByID(id)
		if app == nil {
			return nil, apperror.New(apperror.ConfigInvalid, "unknown app id: "+id)
		}
		seen[id] = true
		stack = append(stack, app.DependsOn...)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// ExtendByDependents returns ids plus every app that (transitively) depends
// on one of them, for ordering group-stop.
func ExtendByDependents(cfg *Configuration, ids []string) []string {
	seen := make(map[string]bool)
	for _, id := range ids {
		seen[id] = true
	}
	changed := true
	for changed {
		changed = false
		for _, app := range cfg.Applications {
			if seen[app.ID] {
				continue
			}
			for _, dep := range app.DependsOn {
				if seen[dep] {
					seen[app.ID] = true
					changed = true
					break
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasCycle reports whether cfg's full dependency graph contains a cycle,
// used by Configuration validation at create/update time (S5).
func HasCycle(cfg *Configuration) ([]string, bool) {
	ids := make([]string, 0, len(cfg.Applications))
	for _, a := range cfg.Applications {
		ids = append(ids, a.ID)
	}
	_, err := TopoSort(cfg, ids)
	if err == nil {
		return nil, false
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		if cyc, ok := ae.Details["cycle"].([]string); ok {
			return cyc, true
		}
	}
	return nil, true
}

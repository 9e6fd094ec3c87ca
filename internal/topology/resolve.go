package topology

// Resolve computes the creation order for a set of store declarations.
//
// The order satisfies two guarantees, and only these two:
//  1. The primary store comes first.
//  2. A store never appears before any member of its dependsOn set.
//
// Callers must not rely on any particular order among otherwise
// unconstrained stores.
//
// Every non-primary store gains an implicit dependency on the primary
// store unless it already lists the primary explicitly. A mirror's
// dependsOn is ignored; the mirror is ordered through the implicit primary
// edge alone and its placement relative to its target is checked later by
// BindMirrors.
//
// The algorithm is Kahn's topological sort, seeded in declaration order so
// a given input always resolves the same way. If any stores remain
// unordered the dependency graph is cyclic and Resolve fails with a
// *CycleError naming the participants; nothing has been provisioned at
// that point.
func Resolve(specs []StoreSpec, primary string) ([]string, error) {
	byName := make(map[string]StoreSpec, len(specs))
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		if _, dup := byName[spec.Name]; dup {
			return nil, &DuplicateStoreError{Name: spec.Name}
		}
		byName[spec.Name] = spec
		names = append(names, spec.Name)
	}
	if _, ok := byName[primary]; !ok {
		return nil, &UnknownPrimaryError{Primary: primary}
	}

	// Edges point from a store to the stores that must wait for it.
	edges := make(map[string][]string, len(specs))
	indegree := make(map[string]int, len(specs))
	for _, name := range names {
		indegree[name] = 0
	}
	addEdge := func(from, to string) {
		edges[from] = append(edges[from], to)
		indegree[to]++
	}

	for _, name := range names {
		spec := byName[name]
		listsPrimary := false
		if !spec.IsMirror() {
			for _, dep := range spec.DependsOn {
				if _, ok := byName[dep]; !ok {
					return nil, &UnknownDependencyError{Store: name, Dependency: dep}
				}
				if dep == primary {
					listsPrimary = true
				}
				addEdge(dep, name)
			}
		}
		if name != primary && !listsPrimary {
			addEdge(primary, name)
		}
	}

	// Kahn's walk, declaration order for ties.
	var ready []string
	for _, name := range names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, next := range edges[name] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(names) {
		stuck := make(map[string]bool, len(names)-len(order))
		for _, name := range names {
			if indegree[name] > 0 {
				stuck[name] = true
			}
		}
		return nil, &CycleError{Participants: cycleParticipants(edges, stuck)}
	}
	return order, nil
}

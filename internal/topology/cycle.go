package topology

import "sort"

// cycleParticipants names the stores actually caught in a cycle.
//
// Kahn's sort leaves behind every store that is stuck, including stores
// that merely depend on a cycle without being part of one. To report only
// the real offenders, the residual graph is decomposed into strongly
// connected components with Tarjan's algorithm; members of components of
// size > 1, plus self-loops, are the participants.
//
// The result is sorted so the same misconfiguration always produces the
// same message.
func cycleParticipants(edges map[string][]string, stuck map[string]bool) []string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		members []string
	)

	selfLoop := func(node string) bool {
		for _, next := range edges[node] {
			if next == node {
				return true
			}
		}
		return false
	}

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if !stuck[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v roots a component: pop it off the stack.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || selfLoop(scc[0]) {
				members = append(members, scc...)
			}
		}
	}

	for node := range stuck {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	sort.Strings(members)
	return members
}

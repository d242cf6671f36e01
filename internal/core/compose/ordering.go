package compose

import (
	"sort"

	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// StartOrder sorts service names by their dependencies using Kahn's
// algorithm. Services with no dependencies come first; ties are broken by
// name so the order is deterministic.
//
// Dependencies on unknown services are ignored. If a cycle exists (which
// stack validation rejects), the remaining services are appended in name
// order as a fallback.
//
// Example:
//
//	// Services: web → api → db
//	StartOrder(services) // returns [db, api, web]
func StartOrder(services map[string]stack.Service) []string {
	if len(services) == 0 {
		return nil
	}

	inDegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)

	for name, svc := range services {
		inDegree[name] = 0
		seen := make(map[string]bool)
		for _, dep := range svc.DependsOn {
			if _, ok := services[dep]; !ok || seen[dep] || dep == name {
				continue
			}
			seen[dep] = true
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(services))
	placed := make(map[string]bool, len(services))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)
		placed[name] = true

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) < len(services) {
		var rest []string
		for name := range services {
			if !placed[name] {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		result = append(result, rest...)
	}

	return result
}

// StopOrder is the reverse of StartOrder: dependents stop before the
// services they depend on.
func StopOrder(services map[string]stack.Service) []string {
	order := StartOrder(services)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

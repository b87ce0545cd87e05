package health

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MrWong99/surveyscribe/internal/resilience"
	"github.com/MrWong99/surveyscribe/internal/routing"
)

// Routing reports the routing cache. A failed last refresh is degraded: the
// cache keeps serving the previous or built-in rules.
func Routing(snapshot func() routing.Snapshot) Checker {
	return Checker{
		Name: "routing",
		Check: func(context.Context) error {
			s := snapshot()
			if s.LastError != nil {
				return fmt.Errorf("%w: last refresh failed: %v", ErrDegraded, s.LastError)
			}
			return nil
		},
	}
}

// Breakers reports circuit breaker states. Any open breaker is degraded, and
// all of them open fails when failIfAllOpen is set.
func Breakers(name string, states func() map[string]resilience.State, failIfAllOpen bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			st := states()
			var open []string
			for _, k := range slices.Sorted(maps.Keys(st)) {
				if st[k] == resilience.StateOpen {
					open = append(open, k)
				}
			}
			switch {
			case len(open) == 0:
				return nil
			case len(open) == len(st) && failIfAllOpen:
				return fmt.Errorf("all circuits open: %s", strings.Join(open, ", "))
			default:
				return fmt.Errorf("%w: circuits open: %s", ErrDegraded, strings.Join(open, ", "))
			}
		},
	}
}

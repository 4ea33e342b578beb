package meowauth

import (
	"slices"
	"sort"
)

// scopeAll expands to every scope the app may request.
const scopeAll = "all"

// ResolveScopes turns a requested scope list into the set granted for app.
//
// "all" expands to the platform scopes, plus the first-party scopes when app
// is first-party. The result is intersected with the universe available to
// app, narrowed by App.AllowedScopes when set. Unknown scopes are dropped and
// the output is sorted without duplicates.
func ResolveScopes(requested []string, app App, cfg OAuthConfig) []string {
	universe := scopeUniverse(app, cfg)

	want := make(map[string]struct{}, len(requested))
	for _, s := range requested {
		if s == scopeAll {
			for _, u := range universe {
				want[u] = struct{}{}
			}
			continue
		}
		want[s] = struct{}{}
	}

	out := make([]string, 0, len(want))
	for s := range want {
		if slices.Contains(universe, s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func scopeUniverse(app App, cfg OAuthConfig) []string {
	universe := append([]string(nil), cfg.PlatformScopes...)
	if app.FirstParty {
		universe = append(universe, cfg.FirstPartyScopes...)
	}
	if len(app.AllowedScopes) > 0 {
		universe = slices.DeleteFunc(universe, func(s string) bool {
			return !slices.Contains(app.AllowedScopes, s)
		})
	}
	return universe
}

// containsAll reports whether have ⊇ want.
func containsAll(have, want []string) bool {
	for _, s := range want {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}

// unionScopes merges a and b into a sorted set.
func unionScopes(a, b []string) []string {
	out := append(append([]string(nil), a...), b...)
	sort.Strings(out)
	return slices.Compact(out)
}

func sameScopes(a, b []string) bool {
	return containsAll(a, b) && containsAll(b, a)
}

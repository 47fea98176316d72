package policy

import (
	"fmt"
	"strings"
)

// Higher is safer.
var safetyLevels = map[Mode]int{
	ModeDryRun: 3,
	ModeTest:   2,
	ModeProd:   1,
}

// ParseMode normalizes raw input into a known mode.
func ParseMode(raw string) (Mode, error) {
	mode := normalizeMode(Mode(raw))
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q (expected dryrun, test or prod)", raw)
	}
	return mode, nil
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := safetyLevels[m]
	return ok
}

// Safety returns the safety level of m, or 0 for unknown modes.
func (m Mode) Safety() int {
	return safetyLevels[m]
}

// Submits reports whether a run in this mode places a real order.
func (m Mode) Submits() bool {
	return m == ModeTest || m == ModeProd
}

func (m Mode) String() string { return string(m) }

// Resolve returns the effective mode for a run configured with env that asked for requested.
// An empty request keeps env. An override is allowed only when it is at least as safe as env.
func Resolve(env, requested Mode) Decision {
	env = normalizeMode(env)
	requested = normalizeMode(requested)

	if requested == "" {
		return Decision{Mode: env, Allowed: true}
	}
	if !requested.Valid() {
		return Decision{
			Mode:      env,
			Requested: requested,
			Reason:    fmt.Sprintf("unknown mode %q", requested),
		}
	}
	if requested.Safety() < env.Safety() {
		return Decision{
			Mode:      env,
			Requested: requested,
			Reason: fmt.Sprintf("cannot override %s (safety=%d) with %s (safety=%d)",
				env, env.Safety(), requested, requested.Safety()),
		}
	}
	return Decision{Mode: requested, Requested: requested, Allowed: true}
}

func normalizeMode(mode Mode) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(string(mode))))
}

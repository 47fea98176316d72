package policy

// Mode is the operating mode of a purchase attempt.
type Mode string

const (
	ModeDryRun Mode = "dryrun"
	ModeTest   Mode = "test"
	ModeProd   Mode = "prod"
)

// Decision is the outcome of resolving a requested mode against the process mode.
type Decision struct {
	Mode      Mode
	Requested Mode
	Allowed   bool
	Reason    string
}

// Overridden reports whether the effective mode differs from the process mode.
func (d Decision) Overridden(env Mode) bool {
	return d.Allowed && d.Mode != env
}

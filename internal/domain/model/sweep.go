package model

// SweepStats are the per-run counters of the reconciliation sweep. They
// exist for observability only and are kept just long enough to compare
// against the previous run for change-only logging.
type SweepStats struct {
	ExpiredFound           int
	Removed                int
	SkippedMissingAccount  int
	SkippedMissingExternal int
	SkippedAlreadyRevoked  int
	AccountsFailed         int
}

// IsZero reports whether the run found nothing to do.
func (s SweepStats) IsZero() bool { return s == SweepStats{} }

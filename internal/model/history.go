package model

// UsageStats tracks per-user generation counters. Counters are
// monotonically non-decreasing and only reset by an explicit revoke.
type UsageStats struct {
	DisplayName string
	Generations int
	TotalLines  int
}

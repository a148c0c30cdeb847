package stdx

// Must1 returns v, panicking when err is non-nil. Reserved for initialization
// paths where failure means the process cannot start.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

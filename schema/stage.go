package schema

// StageResult records the outcome of an optional pipeline stage. Optional
// stages never fail a request: they either apply and produce a value, or
// they are skipped with a reason that gets logged and counted. This keeps
// degradation visible server-side even though it is invisible to the user.
type StageResult[T any] struct {
	Value   T
	Applied bool
	Reason  string
}

// Applied wraps a successful stage outcome.
func Applied[T any](v T) StageResult[T] {
	return StageResult[T]{Value: v, Applied: true}
}

// Skipped marks a stage as soft-failed with a reason.
func Skipped[T any](reason string) StageResult[T] {
	return StageResult[T]{Reason: reason}
}

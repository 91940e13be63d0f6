package xstream

import "math/rand"

// ForEach drains s, calling f on every record in stream order (the
// algorithm named scan in original_source/algo/scan.h).
func ForEach[R any](s *IStream[R], f func(R)) error {
	for !s.Empty() {
		f(s.Current())
		if err := s.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first record satisfying pred, and whether one was
// found, without consuming records beyond the match.
func Find[R any](s *IStream[R], pred func(R) bool) (R, bool, error) {
	for !s.Empty() {
		if cur := s.Current(); pred(cur) {
			return cur, true, nil
		}
		if err := s.Advance(); err != nil {
			var zero R
			return zero, false, err
		}
	}
	var zero R
	return zero, false, nil
}

// Collect drains s into a slice, for callers small enough to hold the
// whole stream in memory (tests, small containers).
func Collect[R any](s *IStream[R]) ([]R, error) {
	var out []R
	err := ForEach(s, func(r R) { out = append(out, r) })
	return out, err
}

// RandomShuffle permutes recs in place with the Fisher-Yates algorithm
// (original_source/algo/random_shuffle.h), the external-memory version of
// which shuffles block order; since blocks are already materialized here
// this operates directly on the decoded slice a caller obtained via
// Collect.
func RandomShuffle[R any](recs []R, rnd *rand.Rand) {
	for i := len(recs) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		recs[i], recs[j] = recs[j], recs[i]
	}
}

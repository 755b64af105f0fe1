// Small generic helpers shared across packages.
package utils

// SliceToSlice maps a slice pointer through f. A nil input yields an empty
// slice, not nil, so json output stays an array.
func SliceToSlice[T any, U any](in *[]T, f func(*T) U) []U {
	if in == nil {
		return make([]U, 0)
	}
	out := make([]U, len(*in))
	for i, v := range *in {
		out[i] = f(&v)
	}
	return out
}

func SliceToMap[K comparable, V any](in *[]V, f func(*V) K) map[K]V {
	out := make(map[K]V, 0)
	if in == nil {
		return out
	}
	for _, v := range *in {
		out[f(&v)] = v
	}
	return out
}

func CheckInSlice[T comparable](v T, in []T) bool {
	for _, e := range in {
		if e == v {
			return true
		}
	}
	return false
}

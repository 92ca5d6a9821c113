package utils

// LimitPageSliceFunc returns page (1-based) of the items matching filter, a
// nil filter matches all, and the number of matching items. Page and limit
// below 1 are treated as 1.
func LimitPageSliceFunc[T any](s []T, page, limit int, filter func(T) bool) ([]T, int) {
	page = max(page, 1)
	limit = max(limit, 1)
	skip := (page - 1) * limit

	data := make([]T, 0, min(limit, len(s)))
	total := 0
	for _, item := range s {
		if filter != nil && !filter(item) {
			continue
		}
		if total >= skip && len(data) < limit {
			data = append(data, item)
		}
		total++
	}
	return data, total
}

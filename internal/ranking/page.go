package ranking

// DefaultPageSize is the number of items per page when none is requested.
const DefaultPageSize = 12

// Page returns the pageIndex-th (zero-based) window of pageSize items.
// Out-of-range pages are empty. A pageSize <= 0 uses DefaultPageSize.
func Page[T any](list []T, pageSize, pageIndex int) []T {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageIndex < 0 || len(list) == 0 || pageIndex > (len(list)-1)/pageSize {
		return nil
	}
	start := pageIndex * pageSize
	end := min(start+pageSize, len(list))
	return list[start:end:end]
}

// Reveal returns the first pages windows of list as one prefix, the view an
// incrementally growing list shows after pages loads. pages < 1 counts as 1.
func Reveal[T any](list []T, pageSize, pages int) []T {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pages < 1 {
		pages = 1
	}
	if pages > len(list)/pageSize {
		return list[:len(list):len(list)]
	}
	n := pages * pageSize
	return list[:n:n]
}

// HasMore reports whether list extends beyond the first pages windows.
func HasMore[T any](list []T, pageSize, pages int) bool {
	return len(Reveal(list, pageSize, pages)) < len(list)
}

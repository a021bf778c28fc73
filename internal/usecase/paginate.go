package usecase

// Paginate returns the 1-indexed page of items. Pages past the end, and
// non-positive page sizes or numbers, yield an empty slice.
func Paginate[T any](items []T, pageSize, pageNumber int) []T {
	if pageSize <= 0 || pageNumber <= 0 || pageNumber > TotalPages(len(items), pageSize) {
		return []T{}
	}
	// pageNumber is bounded by TotalPages, so this cannot overflow.
	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	page := make([]T, end-start)
	copy(page, items[start:end])
	return page
}

// TotalPages is ceil(n/pageSize), or 0 for no items.
func TotalPages(n, pageSize int) int {
	if n <= 0 || pageSize <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

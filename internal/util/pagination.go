package util

const DefaultPageSize = 25

// Calculate turns 1-indexed page parameters into an offset/limit pair.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

package repository

import "math"

const (
	DefaultPageSize = 20  // Page size used when none is given
	MaxPageSize     = 100 // Upper bound for page size
)

// MaxPageNumber keeps (Number-1)*Size within an int for every allowed size
const MaxPageNumber = math.MaxInt / MaxPageSize

// Page selects a window of a listing. The zero Page selects everything.
type Page struct {
	Number int // 1-based page number
	Size   int // Entries per page, 0 means no limit
}

// NewPage builds a bounded page, falling back to defaults for invalid values
func NewPage(number, size int) Page {
	if number <= 0 {
		number = 1 // Default page
	}
	if number > MaxPageNumber {
		number = MaxPageNumber // Past the end of any listing
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize // Default page size
	}
	return Page{Number: number, Size: size}
}

// Unbounded reports whether the page selects the whole listing
func (p Page) Unbounded() bool {
	return p.Size <= 0
}

// Offset is the number of entries skipped before the page starts. It saturates
// at math.MaxInt instead of overflowing.
func (p Page) Offset() int {
	if p.Unbounded() || p.Number <= 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size // Calculate offset
}

// TotalPages is the number of pages needed to hold total entries
func (p Page) TotalPages(total int64) int {
	if p.Unbounded() {
		if total > 0 {
			return 1 // Everything fits on one page
		}
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size)) // Round up
}

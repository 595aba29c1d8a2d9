// Package pagination derives page descriptors for the board list.
package pagination

// DefaultSize is the number of posts shown on one list page.
const DefaultSize = 10

// BlockSize is the number of page links shown in one pager block.
const BlockSize = 10

// Page is a derived, never stored, view of one list page.
type Page struct {
	Current    int
	Size       int
	TotalCount int
	TotalPages int
}

// PageCount returns ceil(total/size), or 0 when there is nothing to page.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// New builds the descriptor for the requested page. A page beyond the last one is clamped
// down to the last page, which happens when posts were deleted after the client rendered its links.
func New(requested, size, total int) Page {
	if size <= 0 {
		size = DefaultSize
	}
	totalPages := PageCount(total, size)
	current := requested
	if totalPages < current {
		current = totalPages
	}
	return Page{
		Current:    current,
		Size:       size,
		TotalCount: total,
		TotalPages: totalPages,
	}
}

// Offset is the number of rows to skip. Never negative.
func (p Page) Offset() int {
	offset := (p.Current - 1) * p.Size
	if offset < 0 {
		return 0
	}
	return offset
}

// HasPrev reports whether a page exists before the current one.
func (p Page) HasPrev() bool { return p.Current > 1 }

// HasNext reports whether a page exists after the current one.
func (p Page) HasNext() bool { return p.Current < p.TotalPages }

// Window is the block of page links rendered under the list.
type Window struct {
	Pages     []int
	PrevBlock int // 0 when there is no previous block
	NextBlock int // 0 when there is no next block
}

// Window returns the block of at most blockSize page numbers containing the current page.
func (p Page) Window(blockSize int) Window {
	if blockSize <= 0 {
		blockSize = BlockSize
	}
	if p.TotalPages == 0 {
		return Window{}
	}

	current := p.Current
	if current < 1 {
		current = 1
	}
	start := ((current-1)/blockSize)*blockSize + 1
	end := start + blockSize - 1
	if end > p.TotalPages {
		end = p.TotalPages
	}

	w := Window{Pages: make([]int, 0, end-start+1)}
	for n := start; n <= end; n++ {
		w.Pages = append(w.Pages, n)
	}
	if start > 1 {
		w.PrevBlock = start - 1
	}
	if end < p.TotalPages {
		w.NextBlock = end + 1
	}
	return w
}

package app

// PageSize is the fixed collection page size.
const PageSize = 50

// Page is a 1-based page request.
type Page struct {
	Number int
}

func (p Page) Limit() int {
	return PageSize
}

func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * PageSize
}

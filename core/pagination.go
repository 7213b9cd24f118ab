package core

// Page selects a window of a result set. Number is 1-based.
type Page struct {
	Number int `query:"page"`
	Size   int `query:"-"`
}

// Clamp bounds the page number to [1, NumPages(count)], the way the admin pages have always
// behaved: a page past the end shows the last page.
func (p Page) Clamp(count, defaultSize int) Page {
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if n := p.NumPages(count); p.Number > n {
		p.Number = n
	}
	return p
}

func (p Page) NumPages(count int) int {
	if p.Size <= 0 || count <= 0 {
		return 1
	}
	return (count + p.Size - 1) / p.Size
}

func (p Page) Offset() int {
	if p.Number < 1 || p.Size <= 0 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int { return p.Size }

// Paginated is a page of results along with the totals needed to navigate the rest.
type Paginated[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	NumPages int `json:"num_pages"`
	Results  []T `json:"results"`
}

func NewPaginated[T any](results []T, count int, page Page) Paginated[T] {
	if results == nil {
		results = []T{}
	}
	return Paginated[T]{
		Count:    count,
		Page:     page.Number,
		NumPages: page.NumPages(count),
		Results:  results,
	}
}

package shared

// Pagination describes one page of a listing.
type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// NewPagination normalises page/pageSize and fills the prev/next links.
// hasNext is derived by the caller from a fetch of pageSize+1 rows.
func NewPagination(page, pageSize int, hasNext bool) Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}
	p := Pagination{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		p.PrevPage = page - 1
	}
	if hasNext {
		p.NextPage = page + 1
	}
	return p
}

package query

// PageInfo describes a page of results for API responses.
type PageInfo struct {
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	Total      *int64 `json:"total,omitempty"`
}

// NewPageInfo assumes more rows follow when a full page came back.
func NewPageInfo(count, limit int) PageInfo {
	return PageInfo{HasNext: count >= limit}
}

// WithHasPrev sets HasPrev.
func (p PageInfo) WithHasPrev(hasPrev bool) PageInfo {
	p.HasPrev = hasPrev
	return p
}

// WithNextCursor sets the next-page token. A non-empty token implies HasNext.
func (p PageInfo) WithNextCursor(token string) PageInfo {
	p.NextCursor = token
	if token != "" {
		p.HasNext = true
	}
	return p
}

// WithPrevCursor sets the previous-page token. A non-empty token implies HasPrev.
func (p PageInfo) WithPrevCursor(token string) PageInfo {
	p.PrevCursor = token
	if token != "" {
		p.HasPrev = true
	}
	return p
}

// WithTotal records the total row count.
func (p PageInfo) WithTotal(total int64) PageInfo {
	p.Total = &total
	return p
}

// NextPage builds the PageInfo for rows fetched with LIMIT limit+1: when the
// extra row is present it is dropped and the last kept row becomes the next
// cursor. The returned slice is rows trimmed to at most limit entries.
func NextPage(rows []map[string]Value, limit int, sorts []SortField, codec *CursorCodec) ([]map[string]Value, PageInfo, error) {
	if limit < 0 {
		limit = 0
	}
	if len(rows) <= limit {
		return rows, PageInfo{}, nil
	}
	rows = rows[:limit]
	info := PageInfo{HasNext: true}
	if limit == 0 {
		return rows, info, nil
	}
	c, err := CursorFromRow(rows[len(rows)-1], sorts)
	if err != nil {
		return nil, PageInfo{}, err
	}
	token, err := codec.Encode(c)
	if err != nil {
		return nil, PageInfo{}, err
	}
	return rows, info.WithNextCursor(token), nil
}

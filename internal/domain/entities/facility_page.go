package entities

// FacilityPage is one page of a facility listing. Page is zero-based.
type FacilityPage struct {
	Content       []Facility `json:"content"`
	Page          int        `json:"page"`
	Size          int        `json:"size"`
	TotalElements int64      `json:"totalElements"`
	TotalPages    int        `json:"totalPages"`
}

// NewFacilityPage builds a page and derives TotalPages from total and size.
func NewFacilityPage(content []Facility, page, size int, total int64) FacilityPage {
	if content == nil {
		content = []Facility{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return FacilityPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

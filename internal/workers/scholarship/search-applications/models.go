package searchapplications

import "scholarship-workers/internal/search"

type Input struct {
	Text       string     `json:"text,omitempty"`
	UserID     string     `json:"userId,omitempty"`
	Status     string     `json:"status,omitempty"`
	ExamMode   string     `json:"examMode,omitempty"`
	Center     string     `json:"center,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type Output struct {
	Applications []search.ApplicationDoc `json:"applications"`
	TotalHits    int64                   `json:"totalHits"`
	Took         int64                   `json:"took"` // milliseconds
}

package models

import (
	"math"
	"slices"
	"time"
)

// PageSize is the number of posts returned per page of the list operation.
const PageSize = 8

// maxPage is the last page whose offset fits in an int. Later pages are
// past the end of any collection and share its offset.
const maxPage = math.MaxInt/PageSize + 1

// Post is the single record kept by the service.
type Post struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title" validate:"required"`
	Message      string    `json:"message" validate:"required"`
	Creator      string    `json:"creator" validate:"required"`
	Tags         []string  `json:"tags"`
	SelectedFile string    `json:"selectedFile"`
	Likes        []string  `json:"likes"`    // user ids, one entry per user
	Comments     []string  `json:"comments"` // append-only, duplicates allowed
	CreatedAt    time.Time `json:"createdAt"`
}

// Normalize replaces nil lists with empty ones so they encode as [] rather than null.
func (p *Post) Normalize() *Post {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
	return p
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	c.Likes = slices.Clone(p.Likes)
	c.Comments = slices.Clone(p.Comments)
	return c.Normalize()
}

// ToggleLike adds userID to Likes when absent and removes every occurrence when
// present. It reports whether the post is liked by userID afterwards.
func (p *Post) ToggleLike(userID string) bool {
	if slices.Contains(p.Likes, userID) {
		p.Likes = slices.DeleteFunc(p.Likes, func(id string) bool { return id == userID })
		return false
	}
	p.Likes = append(p.Likes, userID)
	return true
}

// AddComment appends value to the comment list.
func (p *Post) AddComment(value string) {
	p.Comments = append(p.Comments, value)
}

// PostInput is the body accepted by the create operation.
type PostInput struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Tags         []string `json:"tags"`
	SelectedFile string   `json:"selectedFile"`
}

// PostUpdate carries the replacement fields of the update operation. A nil
// field was absent from the request and is left untouched.
type PostUpdate struct {
	ID           string    `json:"_id,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Message      *string   `json:"message,omitempty"`
	Creator      *string   `json:"creator,omitempty"`
	SelectedFile *string   `json:"selectedFile,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

// ApplyTo overwrites the fields of p that are set on u.
func (u PostUpdate) ApplyTo(p *Post) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Message != nil {
		p.Message = *u.Message
	}
	if u.Creator != nil {
		p.Creator = *u.Creator
	}
	if u.SelectedFile != nil {
		p.SelectedFile = *u.SelectedFile
	}
	if u.Tags != nil {
		p.Tags = slices.Clone(*u.Tags)
	}
}

// PageOffset converts a 1-based page number into the number of records to skip.
func PageOffset(page int) int {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	return (page - 1) * PageSize
}

// PageCount returns ceil(total / PageSize).
func PageCount(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + PageSize - 1) / PageSize)
}

// PostPage is the response of the list operation.
type PostPage struct {
	Data          []*Post `json:"data"`
	CurrentPage   int     `json:"currentPage"`
	NumberOfPages int     `json:"numberOfPages"`
}

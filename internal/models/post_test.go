package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggleLikeRoundTrip(t *testing.T) {
	post := (&Post{}).Normalize()

	assert.True(t, post.ToggleLike("u1"))
	assert.Equal(t, []string{"u1"}, post.Likes)

	assert.False(t, post.ToggleLike("u1"))
	assert.Empty(t, post.Likes)
}

func TestToggleLikeRemovesEveryOccurrence(t *testing.T) {
	post := &Post{Likes: []string{"u1", "u2", "u1"}}

	assert.False(t, post.ToggleLike("u1"))
	assert.Equal(t, []string{"u2"}, post.Likes)
}

func TestAddCommentKeepsDuplicates(t *testing.T) {
	post := (&Post{}).Normalize()
	post.AddComment("hello")
	post.AddComment("hello")

	assert.Equal(t, []string{"hello", "hello"}, post.Comments)
}

func TestPaging(t *testing.T) {
	assert.Equal(t, 0, PageOffset(1))
	assert.Equal(t, 16, PageOffset(3))
	assert.Equal(t, 0, PageOffset(0))

	// 1152921504606846977 * 8 would wrap around to a negative offset.
	assert.Positive(t, PageOffset(1152921504606846977))
	assert.Positive(t, PageOffset(math.MaxInt))
	assert.Equal(t, PageOffset(maxPage), PageOffset(math.MaxInt))

	assert.Equal(t, 0, PageCount(0))
	assert.Equal(t, 1, PageCount(8))
	assert.Equal(t, 2, PageCount(9))
	assert.Equal(t, 13, PageCount(100))
}

func TestApplyUpdateLeavesAbsentFields(t *testing.T) {
	title := "new title"
	tags := []string{"x"}
	post := &Post{Title: "old", Message: "keep", Tags: []string{"a"}}

	PostUpdate{Title: &title, Tags: &tags}.ApplyTo(post)

	assert.Equal(t, "new title", post.Title)
	assert.Equal(t, "keep", post.Message)
	assert.Equal(t, []string{"x"}, post.Tags)
}

func TestCloneIsIndependent(t *testing.T) {
	post := &Post{Likes: []string{"u1"}}
	c := post.Clone()
	c.ToggleLike("u2")

	assert.Equal(t, []string{"u1"}, post.Likes)
	assert.NotNil(t, c.Comments)
}

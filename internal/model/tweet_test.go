package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextReaction(t *testing.T) {
	assert.Equal(t, ReactionLike, NextReaction(ReactionNone, ReactionLike))
	assert.Equal(t, ReactionNone, NextReaction(ReactionLike, ReactionLike))
	assert.Equal(t, ReactionDislike, NextReaction(ReactionLike, ReactionDislike))
	assert.Equal(t, ReactionLike, NextReaction(ReactionDislike, ReactionLike))
	assert.Equal(t, ReactionNone, NextReaction(ReactionDislike, ReactionDislike))
}

func TestParseTweetStatus(t *testing.T) {
	for _, s := range TweetStatuses {
		got, ok := ParseTweetStatus(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseTweetStatus("PUBLISHED")
	assert.False(t, ok)
	_, ok = ParseTweetStatus("")
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)
	_, ok = ParseRole("root")
	assert.False(t, ok)
	assert.False(t, Role("").Valid())
}

func TestIsOwnedBy(t *testing.T) {
	tw := &Tweet{AuthorID: "a"}
	assert.True(t, tw.IsOwnedBy("a"))
	assert.False(t, tw.IsOwnedBy("b"))
	assert.False(t, (&Tweet{}).IsOwnedBy(""))
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"go", "web"}, CleanTags([]string{" go ", "", "web", "  "}))
}

// Package permission decides whether an identity may perform an action on a
// resource type.  The decision is driven by a static matrix compiled once
// at startup and by the structured route table the router registers.
package permission

// IDSuffix marks an id-parameterized action entry, e.g. "updateRole/:id".
const IDSuffix = "/:id"

// ActionSets lists the actions granted to each audience of one resource
// type.  Owner actions are granted provisionally: the handler still has to
// check ownership of the addressed item.
type ActionSets struct {
	Public        []string `json:"public"`
	Authenticated []string `json:"authenticated"`
	Moderator     []string `json:"moderator"`
	Admin         []string `json:"admin"`
	Owner         []string `json:"owner"`
}

// Matrix maps a resource type to its action sets.
type Matrix map[string]ActionSets

// DefaultMatrix is the permission matrix of the platform.  Videos, comments,
// playlists, subscriptions and likes have no handlers yet; their entries
// keep the resolver total over every resource type.
func DefaultMatrix() Matrix {
	return Matrix{
		"user": {
			Public:        []string{"register", "login", "refreshToken"},
			Authenticated: []string{"logout", "currentUser", "deleteAccount"},
			Moderator:     []string{"allUsers", "toggleDisabled/:id"},
			Admin:         []string{"allUsers", "updateRole/:id", "toggleDisabled/:id", "deleteUser/:id"},
		},
		"tweet": {
			Public:        []string{"getAllTweets", "getTweetById/:id"},
			Authenticated: []string{"createTweet", "getMyTweets", "likeTweet/:id", "dislikeTweet/:id", "repostTweet/:id"},
			Moderator:     []string{"moderate", "updateTweetStatus/:id", "updateTweet/:id"},
			Admin:         []string{"moderate", "updateTweetStatus/:id", "updateTweet/:id", "deleteTweet/:id"},
			Owner:         []string{"updateTweet/:id", "deleteTweet/:id"},
		},
		"video": {
			Public:        []string{"getAllVideos", "getVideoById/:id"},
			Authenticated: []string{"publishVideo"},
			Moderator:     []string{"togglePublishStatus/:id"},
			Admin:         []string{"togglePublishStatus/:id", "deleteVideo/:id"},
			Owner:         []string{"updateVideo/:id", "deleteVideo/:id"},
		},
		"comment": {
			Public:        []string{"getVideoComments/:id"},
			Authenticated: []string{"addComment/:id"},
			Moderator:     []string{"deleteComment/:id"},
			Admin:         []string{"deleteComment/:id"},
			Owner:         []string{"updateComment/:id", "deleteComment/:id"},
		},
		"playlist": {
			Public:        []string{"getPlaylistById/:id"},
			Authenticated: []string{"createPlaylist", "getUserPlaylists/:id"},
			Admin:         []string{"deletePlaylist/:id"},
			Owner:         []string{"updatePlaylist/:id", "deletePlaylist/:id", "addVideoToPlaylist/:id", "removeVideoFromPlaylist/:id"},
		},
		"subscription": {
			Public:        []string{"getSubscriberCount/:id"},
			Authenticated: []string{"toggleSubscription/:id", "getSubscribedChannels", "getUserChannelSubscribers/:id"},
		},
		"like": {
			Authenticated: []string{"toggleVideoLike/:id", "toggleCommentLike/:id", "getLikedVideos"},
		},
	}
}

package models

// LikeState is the outcome of a like or unlike as seen by the caller.
type LikeState struct {
	Liked      bool       `json:"liked"`
	LikeCount  int        `json:"likeCount"`
	LikedPosts PostIDList `json:"likedPosts"`
}

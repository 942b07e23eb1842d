package cache

// Cache keys live in one place so the view services and the invalidation
// coordinator cannot drift apart. Format: {kind}:{id}[:{subview}].

func KeyPhoto(id string) string          { return "photo:" + id }
func KeyPhotoLikes(id string) string     { return "photo_likes:" + id }
func KeyPhotoComments(id string) string  { return "photo_comments:" + id }
func KeyCollection(id string) string     { return "collection:" + id }
func KeyCollectionPhotos(id string) string { return "collection_photos:" + id }
func KeyComment(id string) string        { return "comment:" + id }
func KeyUser(id string) string           { return "user:" + id }
func KeyUserPhotosCount(id string) string    { return "user_photos_count:" + id }
func KeyUserFollowersCount(id string) string { return "user_followers_count:" + id }
func KeyUserFollowingCount(id string) string { return "user_following_count:" + id }
func KeyCategory(id string) string       { return "category:" + id }

// KeyFollows caches the follow-relationship boolean for a viewer.
func KeyFollows(followerID, followingID string) string {
	return "follows:" + followerID + ":" + followingID
}

// List-view prefixes, evicted wholesale via DeleteByPrefix.
const (
	PrefixPhotoList      = "photos:list:"
	PrefixCollectionList = "collections:list:"
)

package events

const (
	// KindUserTranscriptSegment identifies transcribed user text.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserImageAdded identifies an image appended to the conversation.
	KindUserImageAdded Kind = "user_input.image_added"
)

// UserTranscriptSegment carries a transcribed text delta.
type UserTranscriptSegment struct {
	Base
	Segment string
	// Generation is the input generation after this segment arrived.
	Generation uint64
}

// NewUserTranscriptSegment creates a transcript segment event.
func NewUserTranscriptSegment(segment string, generation uint64) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment, Generation: generation}
}

// UserImageAdded carries the content id assigned to a new image.
type UserImageAdded struct {
	Base
	ItemID int64
}

// NewUserImageAdded creates an image added event.
func NewUserImageAdded(itemID int64) UserImageAdded {
	return UserImageAdded{Base: NewBase(KindUserImageAdded), ItemID: itemID}
}

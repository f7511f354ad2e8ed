package domain

type MemberType string

const (
	MemberUser         MemberType = "user"
	MemberMediaSession MemberType = "media-session"
)

// Member is one entry of a room's membership list.
// Media session members carry the owning user id as well.
type Member struct {
	Type           MemberType
	UserID         UserID
	MediaSessionID MediaSessionID
}

func NewUserMember(uid UserID) Member {
	return Member{Type: MemberUser, UserID: uid}
}

func NewMediaSessionMember(uid UserID, msid MediaSessionID) Member {
	return Member{Type: MemberMediaSession, UserID: uid, MediaSessionID: msid}
}

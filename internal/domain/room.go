package domain

type (
	RoomName string
	RoomID   string
)

// Room is the conference meta. Floors and the media graph live in core.
type Room struct {
	ID   RoomID
	Name RoomName
}

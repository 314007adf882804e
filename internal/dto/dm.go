package dto

type FriendRequest struct {
	UserID string `json:"userId"`
}

type SendDMRequest struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
}

type DMResponse struct {
	MessageID  string `json:"id"`
	RoomKey    string `json:"roomKey"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

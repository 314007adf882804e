package dto

type CreateRoomRequest struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
}

type JoinRoomRequest struct {
	InviteCode string `json:"inviteCode"`
}

type RoomResponse struct {
	RoomID        string   `json:"roomId"`
	Name          string   `json:"name"`
	Subject       string   `json:"subject"`
	OwnerUserID   string   `json:"ownerUserId"`
	MemberUserIDs []string `json:"memberUserIds"`
	InviteCode    string   `json:"inviteCode,omitempty"`
	CreatedAt     string   `json:"createdAt"`
}

type RoomStateResponse struct {
	Room        RoomResponse        `json:"room"`
	Permissions PermissionsResponse `json:"permissions"`
	Control     ControlResponse     `json:"control"`
}

type PostMessageRequest struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	MessageID  string `json:"id"`
	RoomID     string `json:"roomId"`
	FromUserID string `json:"fromUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

type UpdatePermissionsRequest struct {
	AskAiEnabled *bool  `json:"askAiEnabled,omitempty"`
	GrantUserID  string `json:"grantUserId,omitempty"`
	RevokeUserID string `json:"revokeUserId,omitempty"`
}

type PermissionsResponse struct {
	RoomID       string   `json:"roomId"`
	AskAiEnabled bool     `json:"askAiEnabled"`
	MemberAskAi  []string `json:"memberAskAi"`
}

type SetControlRequest struct {
	// ControllerUserID null releases control.
	ControllerUserID *string `json:"controllerUserId"`
}

type ControlResponse struct {
	RoomID           string  `json:"roomId"`
	ControllerUserID *string `json:"controllerUserId"`
}

type AskAIRequest struct {
	Question string `json:"question"`
}

type AIBlockResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type AskAIResponse struct {
	RoomID string            `json:"roomId"`
	Blocks []AIBlockResponse `json:"blocks"`
}

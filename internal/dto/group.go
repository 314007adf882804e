package dto

type CreateGroupRequest struct {
	Name     string `json:"name"`
	SchoolID string `json:"schoolId,omitempty"`
}

type GroupMemberRequest struct {
	UserID string `json:"userId"`
}

type GroupMessageResponse struct {
	MessageID  string `json:"id"`
	GroupID    string `json:"groupId"`
	FromUserID string `json:"fromUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

type GroupResponse struct {
	GroupID       string   `json:"groupId"`
	Name          string   `json:"name"`
	OwnerUserID   string   `json:"ownerUserId"`
	MemberUserIDs []string `json:"memberUserIds"`
	SchoolID      string   `json:"schoolId,omitempty"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

package model

import (
	"sort"
	"strings"
)

const DocumentVersion = 1

// Document is the single persisted JSON document. Every entity lives in one
// of the top-level slices; all mutation goes through the store's write
// serializer so readers never observe a partially applied change.
type Document struct {
	Version         int                  `json:"version"`
	Users           []UserItem           `json:"users"`
	Schools         []SchoolItem         `json:"schools"`
	StudyRooms      []StudyRoomItem      `json:"studyRooms"`
	RoomMessages    []RoomMessageItem    `json:"roomMessages"`
	RoomPermissions []RoomPermissionItem `json:"roomPermissions"`
	RoomControls    []RoomControlItem    `json:"roomControls"`
	GroupChats      []GroupChatItem      `json:"groupChats"`
	GroupMessages   []GroupMessageItem   `json:"groupMessages"`
	Friendships     []FriendshipItem     `json:"friendships"`
	DirectMessages  []DirectMessageItem  `json:"dms"`
}

type UserItem struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	SchoolID     string `json:"schoolId,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type SchoolItem struct {
	SchoolID  string `json:"schoolId"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type StudyRoomItem struct {
	RoomID        string   `json:"roomId"`
	Name          string   `json:"name"`
	Subject       string   `json:"subject"`
	OwnerUserID   string   `json:"ownerUserId"`
	MemberUserIDs []string `json:"memberUserIds"`
	InviteCode    string   `json:"inviteCode"`
	CreatedAt     string   `json:"createdAt"`
}

type RoomMessageItem struct {
	MessageID  string `json:"id"`
	RoomID     string `json:"roomId"`
	FromUserID string `json:"fromUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

// RoomPermissionItem is 1:1 with a study room. An empty MemberAskAi list
// means allow-all while AskAiEnabled holds; a non-empty list is an explicit
// allow-list. The owner is always allowed regardless.
type RoomPermissionItem struct {
	RoomID       string   `json:"roomId"`
	AskAiEnabled bool     `json:"askAiEnabled"`
	MemberAskAi  []string `json:"memberAskAi"`
}

// RoomControlItem is 1:1 with a study room. A non-empty ControllerUserID
// grants that single user (plus the owner) exclusive rights to ask the AI.
type RoomControlItem struct {
	RoomID           string  `json:"roomId"`
	ControllerUserID *string `json:"controllerUserId"`
}

type GroupChatItem struct {
	GroupID       string   `json:"groupId"`
	Name          string   `json:"name"`
	OwnerUserID   string   `json:"ownerUserId"`
	MemberUserIDs []string `json:"memberUserIds"`
	SchoolID      string   `json:"schoolId,omitempty"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

type GroupMessageItem struct {
	MessageID  string `json:"id"`
	GroupID    string `json:"groupId"`
	FromUserID string `json:"fromUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

// FriendshipItem is a symmetric pair; existence checks must not depend on
// which side initiated.
type FriendshipItem struct {
	AUserID   string `json:"aUserId"`
	BUserID   string `json:"bUserId"`
	CreatedAt string `json:"createdAt"`
}

type DirectMessageItem struct {
	MessageID  string `json:"id"`
	RoomKey    string `json:"roomKey"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

// DMRoomKey builds the channel key for a two-party DM. Sorting the pair makes
// the key commutative: DMRoomKey(a, b) == DMRoomKey(b, a).
func DMRoomKey(aUserID, bUserID string) string {
	pair := []string{aUserID, bUserID}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// SeedDocument returns the document written on first access so downstream
// readers never see missing sections.
func SeedDocument() Document {
	doc := Document{Version: DocumentVersion}
	doc.Migrate()
	return doc
}

// Migrate fills any section missing from an older-version document with a
// safe empty default. Safe to run on every load.
func (d *Document) Migrate() {
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Users == nil {
		d.Users = []UserItem{}
	}
	if d.Schools == nil {
		d.Schools = []SchoolItem{}
	}
	if d.StudyRooms == nil {
		d.StudyRooms = []StudyRoomItem{}
	}
	if d.RoomMessages == nil {
		d.RoomMessages = []RoomMessageItem{}
	}
	if d.RoomPermissions == nil {
		d.RoomPermissions = []RoomPermissionItem{}
	}
	if d.RoomControls == nil {
		d.RoomControls = []RoomControlItem{}
	}
	if d.GroupChats == nil {
		d.GroupChats = []GroupChatItem{}
	}
	if d.GroupMessages == nil {
		d.GroupMessages = []GroupMessageItem{}
	}
	if d.Friendships == nil {
		d.Friendships = []FriendshipItem{}
	}
	if d.DirectMessages == nil {
		d.DirectMessages = []DirectMessageItem{}
	}
}

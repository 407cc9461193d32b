package models

// MemberView is one live connection as exposed over the REST API.
type MemberView struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Role         Role   `json:"role"`
}

// RoomView is a point-in-time snapshot of a room's membership.
type RoomView struct {
	RoomID      string       `json:"roomId"`
	Members     []MemberView `json:"members"`
	Supervisors int          `json:"supervisors"`
	Examinees   int          `json:"examinees"`
}

// LoginRequest is accepted by the development token endpoint.
type LoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=examinee supervisor admin"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

package domain

import "time"

// Team groups users with role-based membership.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TeamWithRole is a team as seen by one of its members.
type TeamWithRole struct {
	Team
	Role        Role `json:"role"`
	MemberCount int  `json:"memberCount"`
}

// TeamMember is the (team, user, role) membership relation.
type TeamMember struct {
	TeamID   string    `json:"teamId"`
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MemberWithUser is a membership joined with the member's profile.
type MemberWithUser struct {
	TeamMember
	User UserSummary `json:"user"`
}

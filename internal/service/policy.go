package service

import (
	"github.com/giecabral/team-flow-management/internal/domain"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// Resource permission rules. Each rule is pure: it sees the actor, the
// actor's team role (empty when the resource has no team) and a snapshot of
// the resource, and returns nil or a typed error.

// CanModifyTask allows team admins and the current assignee to edit or
// delete a team task. Personal tasks are open to their creator and assignee.
func CanModifyTask(actorID string, role domain.Role, task *domain.Task) error {
	if task.IsPersonal() {
		if CanAccessPersonalTask(actorID, task) {
			return nil
		}
		return apperrors.Forbidden("only the creator or assignee can modify this task")
	}
	if role.IsAdmin() || task.IsAssignedTo(actorID) {
		return nil
	}
	return apperrors.Forbidden("only a team admin or the assignee can modify this task")
}

// CanModifyComment allows team admins and the author to edit or delete a comment.
func CanModifyComment(actorID string, role domain.Role, comment *domain.Comment) error {
	if role.IsAdmin() || comment.UserID == actorID {
		return nil
	}
	return apperrors.Forbidden("only a team admin or the author can modify this comment")
}

// CanAccessPersonalTask reports whether actorID created or is assigned to a
// task that has no team.
func CanAccessPersonalTask(actorID string, task *domain.Task) bool {
	return task.CreatedBy == actorID || task.IsAssignedTo(actorID)
}

// CanCreateTeamTask requires at least the dev role.
func CanCreateTeamTask(role domain.Role) error {
	if role.AtLeast(domain.RoleDev) {
		return nil
	}
	return apperrors.Forbidden("insufficient role to create tasks")
}

// CheckAdminRetained rejects a membership change that would leave the team
// without an admin. newRole is nil for removals.
func CheckAdminRetained(target *domain.TeamMember, adminCount int, newRole *domain.Role) error {
	if !target.Role.IsAdmin() {
		return nil
	}
	if newRole != nil && newRole.IsAdmin() {
		return nil
	}
	if adminCount <= 1 {
		return apperrors.LastAdmin()
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/event"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// userSearchLimit caps the add-member user search.
const userSearchLimit = 10

// TeamService manages teams and their memberships. Callers are expected to
// have passed the team-membership gate for the role each operation needs.
type TeamService struct {
	teams    repository.TeamRepository
	members  repository.MemberRepository
	users    repository.UserRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTeamService creates a new team service.
func NewTeamService(
	teams repository.TeamRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *TeamService {
	return &TeamService{
		teams:    teams,
		members:  members,
		users:    users,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTeamInput holds the parameters for creating a team.
type CreateTeamInput struct {
	Name        string
	Description *string
}

// UpdateTeamInput holds the team fields to change. Nil means unchanged.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// ListForUser returns the teams userID belongs to.
func (s *TeamService) ListForUser(ctx context.Context, userID string) ([]domain.TeamWithRole, error) {
	teams, err := s.teams.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if teams == nil {
		teams = []domain.TeamWithRole{}
	}
	return teams, nil
}

// Create creates a team with the actor as its first admin.
func (s *TeamService) Create(ctx context.Context, actorID string, input CreateTeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("team name is required")
	}

	now := s.now().UTC()
	team := &domain.Team{
		ID:          uuid.New().String(),
		Name:        name,
		Description: input.Description,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.teams.CreateWithAdmin(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	if err := s.producer.PublishTeamCreated(ctx, team); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish team.created event",
			slog.String("team_id", team.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "team created",
		slog.String("team_id", team.ID),
		slog.String("user_id", actorID),
	)
	return team, nil
}

// Get returns one team.
func (s *TeamService) Get(ctx context.Context, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("team", teamID)
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// Update changes the team name or description.
func (s *TeamService) Update(ctx context.Context, teamID string, input UpdateTeamInput) (*domain.Team, error) {
	team, err := s.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("team name must not be empty")
		}
		team.Name = name
	}
	if input.Description != nil {
		team.Description = input.Description
	}
	team.UpdatedAt = s.now().UTC()

	if err := s.teams.Update(ctx, team); err != nil {
		return nil, fmt.Errorf("update team: %w", err)
	}
	return team, nil
}

// Delete removes the team with its memberships, tasks and comments.
func (s *TeamService) Delete(ctx context.Context, teamID string) error {
	if err := s.teams.Delete(ctx, teamID); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	s.logger.InfoContext(ctx, "team deleted", slog.String("team_id", teamID))
	return nil
}

// ListMembers returns the team's members with their profiles.
func (s *TeamService) ListMembers(ctx context.Context, teamID string) ([]domain.MemberWithUser, error) {
	members, err := s.members.List(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []domain.MemberWithUser{}
	}
	return members, nil
}

// AddMember adds userID to the team. An empty role means the default role.
func (s *TeamService) AddMember(ctx context.Context, actorID, teamID, userID string, role domain.Role) (*domain.TeamMember, error) {
	if role == "" {
		role = domain.DefaultMemberRole
	}
	if !role.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound(userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	member := &domain.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: s.now().UTC(),
	}
	if err := s.members.Add(ctx, member); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyMember) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add member: %w", err)
	}

	if err := s.producer.PublishMemberAdded(ctx, member, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish team.member_added event",
			slog.String("team_id", teamID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "member added",
		slog.String("team_id", teamID),
		slog.String("member_id", userID),
		slog.String("role", string(role)),
	)
	return member, nil
}

// ChangeMemberRole sets the member's role. Demoting the only admin fails
// with LastAdmin.
func (s *TeamService) ChangeMemberRole(ctx context.Context, actorID, teamID, userID string, role domain.Role) (*domain.TeamMember, error) {
	if !role.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}

	member, err := s.getMember(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role == role {
		return member, nil
	}

	if err := s.checkAdminRetained(ctx, member, &role); err != nil {
		return nil, err
	}
	if err := s.members.UpdateRole(ctx, teamID, userID, role); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update member role: %w", err)
	}

	previous := member.Role
	member.Role = role

	if err := s.producer.PublishMemberRoleChanged(ctx, teamID, userID, previous, role, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish team.member_role_changed event",
			slog.String("team_id", teamID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "member role changed",
		slog.String("team_id", teamID),
		slog.String("member_id", userID),
		slog.String("from", string(previous)),
		slog.String("to", string(role)),
	)
	return member, nil
}

// RemoveMember removes userID from the team. Removing the only admin fails
// with LastAdmin.
func (s *TeamService) RemoveMember(ctx context.Context, actorID, teamID, userID string) error {
	member, err := s.getMember(ctx, teamID, userID)
	if err != nil {
		return err
	}

	if err := s.checkAdminRetained(ctx, member, nil); err != nil {
		return err
	}
	if err := s.members.Remove(ctx, teamID, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("remove member: %w", err)
	}

	if err := s.producer.PublishMemberRemoved(ctx, teamID, userID, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish team.member_removed event",
			slog.String("team_id", teamID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "member removed",
		slog.String("team_id", teamID),
		slog.String("member_id", userID),
	)
	return nil
}

// SearchUsers finds users not yet in the team. A blank query matches nobody.
func (s *TeamService) SearchUsers(ctx context.Context, teamID, query string) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.UserSummary{}, nil
	}

	users, err := s.users.SearchNotInTeam(ctx, teamID, query, userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	return users, nil
}

func (s *TeamService) getMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	member, err := s.members.Get(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("team member", userID)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (s *TeamService) checkAdminRetained(ctx context.Context, target *domain.TeamMember, newRole *domain.Role) error {
	if !target.Role.IsAdmin() {
		return nil
	}
	admins, err := s.members.CountAdmins(ctx, target.TeamID)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	return CheckAdminRetained(target, admins, newRole)
}

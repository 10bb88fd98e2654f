package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giecabral/team-flow-management/internal/domain"
	pkgkafka "github.com/giecabral/team-flow-management/pkg/kafka"
	"github.com/giecabral/team-flow-management/pkg/logger"
)

// Kafka topics for team-flow domain events.
const (
	TopicUserRegistered    = "teamflow.user.registered"
	TopicUserCreated       = "teamflow.user.created"
	TopicTeamCreated       = "teamflow.team.created"
	TopicMemberAdded       = "teamflow.team.member_added"
	TopicMemberRemoved     = "teamflow.team.member_removed"
	TopicMemberRoleChanged = "teamflow.team.member_role_changed"
	TopicTaskCreated       = "teamflow.task.created"
	TopicTaskAssigned      = "teamflow.task.assigned"
)

// Aggregate types.
const (
	AggregateUser = "user"
	AggregateTeam = "team"
	AggregateTask = "task"
)

// Source identifies events emitted by this service.
const Source = "team-flow"

// UserData is the payload of user events.
type UserData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TeamData is the payload of team.created.
type TeamData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

// MemberData is the payload of membership events. PreviousRole is only set
// on role changes.
type MemberData struct {
	TeamID       string      `json:"team_id"`
	UserID       string      `json:"user_id"`
	Role         domain.Role `json:"role,omitempty"`
	PreviousRole domain.Role `json:"previous_role,omitempty"`
}

// TaskData is the payload of task events.
type TaskData struct {
	ID         string  `json:"id"`
	TeamID     *string `json:"team_id"`
	Title      string  `json:"title"`
	AssignedTo *string `json:"assigned_to"`
	CreatedBy  string  `json:"created_by"`
}

// Producer publishes team-flow domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer on top of any kafka publisher.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishUserRegistered announces a self-registration.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, u.ID, AggregateUser, u.ID, userData(u))
}

// PublishUserCreated announces a user created by another user.
func (p *Producer) PublishUserCreated(ctx context.Context, u *domain.User, actorID string) error {
	return p.publish(ctx, TopicUserCreated, u.ID, AggregateUser, actorID, userData(u))
}

// PublishTeamCreated announces a new team.
func (p *Producer) PublishTeamCreated(ctx context.Context, t *domain.Team) error {
	return p.publish(ctx, TopicTeamCreated, t.ID, AggregateTeam, t.CreatedBy, TeamData{
		ID:        t.ID,
		Name:      t.Name,
		CreatedBy: t.CreatedBy,
	})
}

// PublishMemberAdded announces a new membership.
func (p *Producer) PublishMemberAdded(ctx context.Context, m *domain.TeamMember, actorID string) error {
	return p.publish(ctx, TopicMemberAdded, m.TeamID, AggregateTeam, actorID, MemberData{
		TeamID: m.TeamID,
		UserID: m.UserID,
		Role:   m.Role,
	})
}

// PublishMemberRemoved announces a removed membership.
func (p *Producer) PublishMemberRemoved(ctx context.Context, teamID, userID, actorID string) error {
	return p.publish(ctx, TopicMemberRemoved, teamID, AggregateTeam, actorID, MemberData{
		TeamID: teamID,
		UserID: userID,
	})
}

// PublishMemberRoleChanged announces a role change.
func (p *Producer) PublishMemberRoleChanged(ctx context.Context, teamID, userID string, from, to domain.Role, actorID string) error {
	return p.publish(ctx, TopicMemberRoleChanged, teamID, AggregateTeam, actorID, MemberData{
		TeamID:       teamID,
		UserID:       userID,
		Role:         to,
		PreviousRole: from,
	})
}

// PublishTaskCreated announces a new task.
func (p *Producer) PublishTaskCreated(ctx context.Context, t *domain.Task) error {
	return p.publish(ctx, TopicTaskCreated, t.ID, AggregateTask, t.CreatedBy, taskData(t))
}

// PublishTaskAssigned announces that a task got a new assignee.
func (p *Producer) PublishTaskAssigned(ctx context.Context, t *domain.Task, actorID string) error {
	return p.publish(ctx, TopicTaskAssigned, t.ID, AggregateTask, actorID, taskData(t))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType, actorID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.CorrelationID = logger.CorrelationIDFromContext(ctx)
	evt.ActorID = actorID

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func userData(u *domain.User) UserData {
	return UserData{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func taskData(t *domain.Task) TaskData {
	return TaskData{ID: t.ID, TeamID: t.TeamID, Title: t.Title, AssignedTo: t.AssignedTo, CreatedBy: t.CreatedBy}
}

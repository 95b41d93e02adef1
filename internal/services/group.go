package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

const maxGroupMembers = 50

// GroupService handles group creation and membership checks
type GroupService struct {
	groupRepo *repository.GroupRepository
	userRepo  *repository.UserRepository
}

// NewGroupService creates a new group service
func NewGroupService(groupRepo *repository.GroupRepository, userRepo *repository.UserRepository) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
	}
}

// CreateGroup creates a group of the creator plus members given by ID or friend code.
// Duplicates collapse; the creator is always the first member.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs, memberCodes []string) (*models.GroupWithMembers, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameSize {
		return nil, invalid("group name must be 1-%d characters", maxNameSize)
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}

	for _, code := range memberCodes {
		user, err := s.userRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
		if err != nil {
			return nil, classify("user code "+code, err)
		}
		add(user.ID)
	}
	for _, id := range memberIDs {
		add(id)
	}
	if len(members) > maxGroupMembers {
		return nil, invalid("a group can have at most %d members", maxGroupMembers)
	}

	users, err := s.userRepo.GetMany(ctx, members)
	if err != nil {
		return nil, classify("load members", err)
	}
	if len(users) != len(members) {
		return nil, classify("load members", errMissingMember(members, users))
	}

	group := &models.Group{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: creatorID,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, classify("create group", err)
	}

	log.Info().
		Str("group_id", group.ID).
		Str("created_by", creatorID).
		Int("members", len(members)).
		Msg("Group created")

	return withMembers(group, users), nil
}

// GetGroup returns a group with member details
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.GroupWithMembers, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, classify("group "+groupID, err)
	}
	users, err := s.userRepo.GetMany(ctx, group.Members)
	if err != nil {
		return nil, classify("load members", err)
	}
	return withMembers(group, users), nil
}

// ListGroups returns every group the user belongs to
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*models.GroupWithMembers, error) {
	groups, err := s.groupRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify("list groups", err)
	}

	out := make([]*models.GroupWithMembers, 0, len(groups))
	for _, group := range groups {
		users, err := s.userRepo.GetMany(ctx, group.Members)
		if err != nil {
			return nil, classify("load members", err)
		}
		out = append(out, withMembers(group, users))
	}
	return out, nil
}

// RequireMember loads a group and checks that userID belongs to it
func (s *GroupService) RequireMember(ctx context.Context, groupID, userID string) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, classify("group "+groupID, err)
	}
	if !group.HasMember(userID) {
		return nil, ErrForbidden
	}
	return group, nil
}

func withMembers(group *models.Group, users []*models.User) *models.GroupWithMembers {
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	details := make([]models.Member, 0, len(group.Members))
	for _, id := range group.Members {
		if u, ok := byID[id]; ok {
			details = append(details, u.AsMember())
		}
	}
	return &models.GroupWithMembers{Group: *group, MemberDetails: details}
}

func errMissingMember(ids []string, found []*models.User) error {
	have := make(map[string]bool, len(found))
	for _, u := range found {
		have[u.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return fmt.Errorf("user %s: %w", id, kv.ErrNotFound)
		}
	}
	return kv.ErrNotFound
}

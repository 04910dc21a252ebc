package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	apiconnect.UnimplementedGroupServiceHandler
	store storage.Store
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group with the caller as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("group name is required")
	}

	members := dedupe(append([]string{userID}, req.Msg.MemberIDs...))
	users, err := lookupUsers(ctx, s.store, members)
	if err != nil {
		return nil, err
	}

	group := &models.Group{Name: name, Members: members}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "members_count", len(members))
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group, users)}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group, users)}), nil
}

// ListGroups returns every group the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "user_id", userID, "error", err)
		return nil, storeError(err)
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.Members...)
	}
	users, err := s.store.GetUsersByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]api.Group, len(groups))
	for i := range groups {
		out[i] = toAPIGroup(&groups[i], users)
	}
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds registered users to a group the caller belongs to.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Msg.MemberIDs) == 0 {
		return nil, invalidArgument("at least one member is required")
	}

	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}
	newMembers := dedupe(req.Msg.MemberIDs)
	if _, err := lookupUsers(ctx, s.store, newMembers); err != nil {
		return nil, err
	}

	if err := s.store.AddGroupMembers(ctx, req.Msg.GroupID, newMembers); err != nil {
		slog.Error("AddMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}
	slog.Info("Members added", "group_id", req.Msg.GroupID, "new_members", newMembers)

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, storeError(err)
	}
	users, err := s.store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&api.AddMembersResponse{Group: toAPIGroup(group, users)}), nil
}

// memberGroup loads groupID and checks that userID belongs to it.
func memberGroup(ctx context.Context, groups storage.GroupStore, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, invalidArgument("group id is required")
	}
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeError(err)
	}
	if !group.HasMember(userID) {
		return nil, permissionDenied("you are not a member of group %s", groupID)
	}
	return group, nil
}

// lookupUsers loads ids and fails with CodeInvalidArgument naming the
// first one that is not registered.
func lookupUsers(ctx context.Context, users storage.UserStore, ids []string) (map[string]*models.User, error) {
	found, err := users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, invalidArgument("unknown user %q", id)
		}
	}
	return found, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

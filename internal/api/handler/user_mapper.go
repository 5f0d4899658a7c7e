package handler

import (
	"github.com/ssoserver/user-directory/internal/core/ports"
)

// --- Request → Service input ---

func toCreateInput(req userRequest, actor string) ports.CreateUserInput {
	return ports.CreateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Actor:     actor,
	}
}

func toUpdateInput(id string, req updateUserRequest, actor string) ports.UpdateUserInput {
	return ports.UpdateUserInput{
		ID:        id,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IsEnabled: req.IsEnabled,
		Actor:     actor,
	}
}

// toListInput maps the is_enabled query value. Empty lists enabled users
// only and "all" drops the filter.
func toListInput(q listUsersQuery) ports.ListUsersInput {
	enabled := true
	switch q.IsEnabled {
	case "all":
		return ports.ListUsersInput{}
	case "false":
		enabled = false
	}
	return ports.ListUsersInput{IsEnabled: &enabled}
}

// --- Service output → Response ---

func toUserResponse(v ports.UserView) userResponse {
	return userResponse{
		ID:             v.ID,
		Email:          v.Email,
		UserName:       v.UserName,
		FirstName:      v.FirstName,
		LastName:       v.LastName,
		Role:           v.Role,
		IsEnabled:      v.IsEnabled,
		EmailConfirmed: v.EmailConfirmed,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}

func toUserResponses(views []ports.UserView) []userResponse {
	out := make([]userResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toUserResponse(v))
	}
	return out
}

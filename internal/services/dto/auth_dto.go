package dto

import "workbridge_backend/internal/models"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SelectRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=freelancer employer"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID     string            `json:"id"`
	Email  string            `json:"email"`
	Role   models.UserRole   `json:"role"`
	Status models.UserStatus `json:"status"`
}

func ToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:     user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	}
}

package models

type UserStatus string
type UserRole string
type JobStatus string
type ProposalStatus string
type PayoutStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"

	// RoleNone is assigned at registration and replaced once the user
	// completes a freelancer or employer profile.
	UserRoleNone       UserRole = "none"
	UserRoleFreelancer UserRole = "freelancer"
	UserRoleEmployer   UserRole = "employer"
	UserRoleAdmin      UserRole = "admin"

	JobStatusDraft     JobStatus = "draft"
	JobStatusOpen      JobStatus = "open"
	JobStatusClosed    JobStatus = "closed"
	JobStatusCancelled JobStatus = "cancelled"

	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"

	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

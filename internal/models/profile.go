package models

// FreelancerProfile completes a user's freelancer role.
type FreelancerProfile struct {
	BaseModel
	UserID      string   `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	DisplayName string   `gorm:"not null" json:"display_name"`
	Headline    string   `json:"headline"`
	Bio         string   `json:"bio"`
	HourlyRate  float64  `json:"hourly_rate"`
	AvatarURL   string   `json:"avatar_url"`
	Skills      []string `gorm:"serializer:json" json:"skills"`
}

// EmployerProfile completes a user's employer role.
type EmployerProfile struct {
	BaseModel
	UserID      string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	CompanyName string `gorm:"not null" json:"company_name"`
	Website     string `json:"website"`
	About       string `json:"about"`
	AvatarURL   string `json:"avatar_url"`
}

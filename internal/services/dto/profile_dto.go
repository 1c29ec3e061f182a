package dto

type UpsertFreelancerProfileRequest struct {
	DisplayName string   `json:"display_name" validate:"required,min=2,max=100"`
	Headline    string   `json:"headline" validate:"max=160"`
	Bio         string   `json:"bio" validate:"max=4000"`
	HourlyRate  float64  `json:"hourly_rate" validate:"gte=0"`
	AvatarURL   string   `json:"avatar_url" validate:"omitempty,url"`
	Skills      []string `json:"skills" validate:"max=30,dive,min=1,max=50"`
}

type UpsertEmployerProfileRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=150"`
	Website     string `json:"website" validate:"omitempty,url"`
	About       string `json:"about" validate:"max=4000"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

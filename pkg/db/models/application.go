package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is a freelancer's application to a job posting. Creating one
// triggers the applicant confirmation email.
type Application struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	JobID           string    `gorm:"column:job_id;type:text;not null"`
	JobName         *string   `gorm:"column:job_name;type:text"`
	ClientName      *string   `gorm:"column:client_name;type:text"`
	FreelancerEmail string    `gorm:"column:freelancer_email;type:text;not null"`
	FreelancerName  *string   `gorm:"column:freelancer_name;type:text"`
	Salary          *string   `gorm:"column:salary;type:text"`
	Duration        *string   `gorm:"column:duration;type:text"`
	CoverLetter     *string   `gorm:"column:cover_letter;type:text"`
	SideEffectStatus
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Application) TableName() string {
	return "applications"
}

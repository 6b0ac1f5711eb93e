package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationCreatedEvent carries the full field set of a newly created
// application. Optional fields stay nil when the applicant left them blank.
type ApplicationCreatedEvent struct {
	ApplicationID   uuid.UUID `json:"applicationId"`
	JobID           string    `json:"jobId"`
	JobName         *string   `json:"jobName,omitempty"`
	ClientName      *string   `json:"clientName,omitempty"`
	FreelancerEmail string    `json:"freelancerEmail"`
	FreelancerName  *string   `json:"freelancerName,omitempty"`
	Salary          *string   `json:"salary,omitempty"`
	Duration        *string   `json:"duration,omitempty"`
	CoverLetter     *string   `json:"coverLetter,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

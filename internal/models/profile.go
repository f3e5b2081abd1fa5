package models

// AcademicProfile is the part of a user's identity that drives eligibility.
type AcademicProfile struct {
	Department   string `json:"department"`
	CurrentLevel int    `json:"level"`
}

// ProfileSummary is the dashboard header for a signed-in student.
type ProfileSummary struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	Department string `json:"department"`
	Level      int    `json:"level"`
}

// Dashboard bundles the profile summary with the student's eligible courses.
type Dashboard struct {
	Profile ProfileSummary `json:"profile"`
	Courses []Course       `json:"courses"`
}

package models

import "time"

// MaterialType enumerates the kinds of library resources.
type MaterialType string

const (
	MaterialPastQuestion MaterialType = "PQ"
	MaterialNote         MaterialType = "NOTE"
	MaterialTextbook     MaterialType = "TEXTBOOK"
)

// Valid reports whether t is a known material type.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialPastQuestion, MaterialNote, MaterialTextbook:
		return true
	}
	return false
}

// Semester enumerates academic semesters.
type Semester string

const (
	SemesterFirst  Semester = "FIRST"
	SemesterSecond Semester = "SECOND"
)

// Valid reports whether s is a known semester.
func (s Semester) Valid() bool {
	return s == SemesterFirst || s == SemesterSecond
}

// Material is a downloadable file belonging to exactly one course.
type Material struct {
	ID            string       `db:"id" json:"id"`
	CourseID      string       `db:"course_id" json:"course_id"`
	Title         string       `db:"title" json:"title"`
	Type          MaterialType `db:"type" json:"type"`
	Year          string       `db:"year" json:"year"`
	Semester      Semester     `db:"semester" json:"semester"`
	FileSize      int64        `db:"file_size" json:"file_size"`
	DownloadCount int64        `db:"download_count" json:"download_count"`
	FileURL       string       `db:"file_url" json:"file_url"`
	UploadedBy    *string      `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// MaterialWithCourse adds the owning course code for listings.
type MaterialWithCourse struct {
	Material
	CourseCode string `db:"course_code" json:"course_code"`
}

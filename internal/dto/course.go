package dto

import "github.com/rcffuta/elib-api/internal/models"

// CreateCourseRequest is the admin payload for a new course.
type CreateCourseRequest struct {
	Code       string `json:"code" validate:"required,max=16"`
	Title      string `json:"title" validate:"required,max=255"`
	Department string `json:"department" validate:"required,max=64"`
	Level      int    `json:"level" validate:"required"`
}

// CourseMaterialsResponse pairs a course with its materials.
type CourseMaterialsResponse struct {
	Course    models.Course     `json:"course"`
	Materials []models.Material `json:"materials"`
}

package dto

import "github.com/rcffuta/elib-api/internal/models"

// CreateMaterialRequest registers a file already uploaded to the media host.
type CreateMaterialRequest struct {
	CourseID string              `json:"course_id" validate:"required,uuid"`
	Title    string              `json:"title" validate:"required,max=255"`
	Type     models.MaterialType `json:"type" validate:"required,oneof=PQ NOTE TEXTBOOK"`
	Year     string              `json:"year" validate:"required,max=16"`
	Semester models.Semester     `json:"semester" validate:"required,oneof=FIRST SECOND"`
	FileURL  string              `json:"file_url" validate:"required,url"`
	FileSize int64               `json:"file_size" validate:"min=0"`
}

// DownloadResponse carries the resolved file location.
type DownloadResponse struct {
	MaterialID string `json:"material_id"`
	FileURL    string `json:"file_url"`
}

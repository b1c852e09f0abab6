package model

import (
	"time"

	"github.com/google/uuid"
)

// Course groups exams and uploaded materials under a lecturer.
type Course struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Title      string    `json:"title"`
	LecturerID int       `json:"lecturer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CourseMaterial is an uploaded file attached to a course.
type CourseMaterial struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy int       `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Code  string `json:"code" binding:"required,min=2,max=32"`
	Title string `json:"title" binding:"required,min=3,max=255"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Code  string `json:"code" binding:"omitempty,min=2,max=32"`
	Title string `json:"title" binding:"omitempty,min=3,max=255"`
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritest/veritest-backend/internal/model"
)

// CourseRepository handles course and material data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID retrieves a course.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, title, lecturer_id, created_at FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Title, &c.LecturerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByLecturer retrieves a lecturer's courses. Pass lecturerID=0 for all.
func (r *CourseRepository) ListByLecturer(ctx context.Context, lecturerID int) ([]model.Course, error) {
	query := `SELECT id, code, title, lecturer_id, created_at FROM courses`
	var args []any
	if lecturerID > 0 {
		query += ` WHERE lecturer_id = $1`
		args = append(args, lecturerID)
	}
	query += ` ORDER BY code ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Title, &c.LecturerID, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (code, title, lecturer_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Code, c.Title, c.LecturerID,
	).Scan(&c.ID, &c.CreatedAt)
}

// Update applies edits to a course.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE courses SET code = $1, title = $2 WHERE id = $3`,
		c.Code, c.Title, c.ID)
	return err
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	return err
}

// AddMaterial attaches an uploaded file to a course.
func (r *CourseRepository) AddMaterial(ctx context.Context, m *model.CourseMaterial) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO course_materials (course_id, file_name, stored_path, size_bytes, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		m.CourseID, m.FileName, m.StoredPath, m.SizeBytes, m.UploadedBy,
	).Scan(&m.ID, &m.CreatedAt)
}

// ListMaterials retrieves a course's materials.
func (r *CourseRepository) ListMaterials(ctx context.Context, courseID uuid.UUID) ([]model.CourseMaterial, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, file_name, stored_path, size_bytes, uploaded_by, created_at
		 FROM course_materials WHERE course_id = $1
		 ORDER BY created_at DESC`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []model.CourseMaterial
	for rows.Next() {
		var m model.CourseMaterial
		if err := rows.Scan(&m.ID, &m.CourseID, &m.FileName, &m.StoredPath, &m.SizeBytes, &m.UploadedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// GetMaterial retrieves a single material row.
func (r *CourseRepository) GetMaterial(ctx context.Context, id uuid.UUID) (*model.CourseMaterial, error) {
	m := &model.CourseMaterial{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, file_name, stored_path, size_bytes, uploaded_by, created_at
		 FROM course_materials WHERE id = $1`, id,
	).Scan(&m.ID, &m.CourseID, &m.FileName, &m.StoredPath, &m.SizeBytes, &m.UploadedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMaterial removes a material row.
func (r *CourseRepository) DeleteMaterial(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM course_materials WHERE id = $1`, id)
	return err
}

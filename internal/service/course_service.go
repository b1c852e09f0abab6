package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

var (
	ErrCourseNotFound      = errors.New("course not found")
	ErrNotCourseOwner      = errors.New("course belongs to another lecturer")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Material uploads are documents a lecturer shares with a course, not images,
// so the allow-list is study-material formats.
var allowedMaterialTypes = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/plain": ".txt",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// CourseService manages courses and their uploaded materials. Files land on
// local disk under cfg.UploadDir with UUID filenames; the database keeps the
// original name for display.
type CourseService struct {
	cfg        *config.Config
	courseRepo *repository.CourseRepository
	log        zerolog.Logger
}

func NewCourseService(cfg *config.Config, courseRepo *repository.CourseRepository, log zerolog.Logger) *CourseService {
	return &CourseService{
		cfg:        cfg,
		courseRepo: courseRepo,
		log:        log.With().Str("component", "course_service").Logger(),
	}
}

// ownedCourse loads a course and checks the caller may modify it. lecturerID 0
// means an admin.
func (s *CourseService) ownedCourse(ctx context.Context, courseID uuid.UUID, lecturerID int) (*model.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if lecturerID != 0 && course.LecturerID != lecturerID {
		return nil, ErrNotCourseOwner
	}
	return course, nil
}

func (s *CourseService) GetByID(ctx context.Context, courseID uuid.UUID) (*model.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

// List returns the lecturer's courses, or all courses for lecturerID 0.
func (s *CourseService) List(ctx context.Context, lecturerID int) ([]model.Course, error) {
	return s.courseRepo.ListByLecturer(ctx, lecturerID)
}

func (s *CourseService) Create(ctx context.Context, lecturerID int, req model.CreateCourseRequest) (*model.Course, error) {
	course := &model.Course{
		ID:         uuid.New(),
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Title:      req.Title,
		LecturerID: lecturerID,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, courseID uuid.UUID, lecturerID int, req model.UpdateCourseRequest) (*model.Course, error) {
	course, err := s.ownedCourse(ctx, courseID, lecturerID)
	if err != nil {
		return nil, err
	}
	if req.Code != "" {
		course.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	}
	if req.Title != "" {
		course.Title = req.Title
	}
	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, courseID uuid.UUID, lecturerID int) error {
	if _, err := s.ownedCourse(ctx, courseID, lecturerID); err != nil {
		return err
	}
	return s.courseRepo.Delete(ctx, courseID)
}

// UploadMaterial validates and stores an uploaded file, then records it
// against the course. Returns the created material row.
func (s *CourseService) UploadMaterial(ctx context.Context, courseID uuid.UUID, lecturerID int, file multipart.File, header *multipart.FileHeader) (*model.CourseMaterial, error) {
	if _, err := s.ownedCourse(ctx, courseID, lecturerID); err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedMaterialTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}
	if header.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	material := &model.CourseMaterial{
		ID:         uuid.New(),
		CourseID:   courseID,
		FileName:   header.Filename,
		StoredPath: "/uploads/" + filename,
		SizeBytes:  header.Size,
		UploadedBy: lecturerID,
	}
	if err := s.courseRepo.AddMaterial(ctx, material); err != nil {
		os.Remove(destPath)
		return nil, err
	}

	s.log.Info().
		Str("course_id", courseID.String()).
		Str("file", header.Filename).
		Int64("size", header.Size).
		Msg("material uploaded")
	return material, nil
}

func (s *CourseService) ListMaterials(ctx context.Context, courseID uuid.UUID) ([]model.CourseMaterial, error) {
	if _, err := s.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.courseRepo.ListMaterials(ctx, courseID)
}

// DeleteMaterial removes the database row and best-effort deletes the file.
func (s *CourseService) DeleteMaterial(ctx context.Context, courseID, materialID uuid.UUID, lecturerID int) error {
	if _, err := s.ownedCourse(ctx, courseID, lecturerID); err != nil {
		return err
	}
	material, err := s.courseRepo.GetMaterial(ctx, materialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMaterialNotFound
		}
		return err
	}
	if material.CourseID != courseID {
		return ErrMaterialNotFound
	}
	if err := s.courseRepo.DeleteMaterial(ctx, materialID); err != nil {
		return err
	}
	if name := filepath.Base(material.StoredPath); name != "" && name != "." {
		if err := os.Remove(filepath.Join(s.cfg.UploadDir, name)); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", material.StoredPath).Msg("stored file not removed")
		}
	}
	return nil
}

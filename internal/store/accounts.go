package store

import (
	"context"
	"strings"

	"ebus_manager/internal/models"
)

// StudentFilter narrows student listings.
type StudentFilter struct {
	Department string
	Year       int
	Search     string
	Page       Page
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := s.db.WithContext(ctx).Where("LOWER(email) = ? AND is_active = ?", strings.ToLower(email), true).First(&admin).Error
	if err != nil {
		return nil, notFoundOr("find", "admin", email, err)
	}
	return &admin, nil
}

func (s *Store) FindAdmin(ctx context.Context, id uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return nil, notFoundOr("find", "admin", id, err)
	}
	return &admin, nil
}

func (s *Store) CreateAdmin(ctx context.Context, admin *models.AdminUser) error {
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		return duplicateError("create admin", err)
	}
	return nil
}

func (s *Store) FindStudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).Where("LOWER(email) = ? AND is_active = ?", strings.ToLower(email), true).First(&student).Error
	if err != nil {
		return nil, notFoundOr("find", "student", email, err)
	}
	return &student, nil
}

func (s *Store) FindStudent(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, notFoundOr("find", "student", id, err)
	}
	return &student, nil
}

func (s *Store) CreateStudent(ctx context.Context, student *models.Student) error {
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return duplicateError("create student", err)
	}
	return nil
}

func (s *Store) ListStudents(ctx context.Context, f StudentFilter) ([]models.Student, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Student{}).Where("is_active = ?", true)
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("full_name ILIKE ? OR email ILIKE ? OR student_code ILIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap("count students", err)
	}
	var students []models.Student
	if err := f.Page.apply(q).Order("full_name").Find(&students).Error; err != nil {
		return nil, 0, wrap("list students", err)
	}
	return students, total, nil
}

// UpdateStudentToken stores the device token used for push notifications.
func (s *Store) UpdateStudentToken(ctx context.Context, id uint, token string) error {
	err := s.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Update("fcm_token", token).Error
	return wrap("update fcm token", err)
}

// StudentTokens returns push tokens of the given students; all active students when ids is empty.
func (s *Store) StudentTokens(ctx context.Context, ids []uint) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.Student{}).
		Where("is_active = ? AND fcm_token <> ''", true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	var tokens []string
	if err := q.Pluck("fcm_token", &tokens).Error; err != nil {
		return nil, wrap("student tokens", err)
	}
	return tokens, nil
}

// ShiftStudentTokens returns push tokens of students holding a seat on the shift.
func (s *Store) ShiftStudentTokens(ctx context.Context, shiftID uint) ([]string, error) {
	var tokens []string
	err := s.db.WithContext(ctx).Model(&models.Student{}).
		Joins("JOIN seat_allocations sa ON sa.student_id = students.id AND sa.deleted_at IS NULL").
		Where("sa.shift_id = ? AND sa.status <> ? AND students.fcm_token <> ''", shiftID, models.AllocationCancelled).
		Pluck("students.fcm_token", &tokens).Error
	if err != nil {
		return nil, wrap("shift student tokens", err)
	}
	return tokens, nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

const maxRosterRows = 5000

// Column aliases per canonical header. Headers compare case-insensitively.
var (
	teacherColumns = map[string][]string{
		"email":      {"email", "メールアドレス", "メール"},
		"name":       {"name", "氏名", "名前"},
		"class_list": {"class_list", "classes", "担当クラス"},
	}
	studentColumns = map[string][]string{
		"student_id":   {"student_id", "生徒id", "生徒番号"},
		"name":         {"name", "氏名", "名前"},
		"class_tag":    {"class_tag", "class", "クラス"},
		"parent_email": {"parent_email", "保護者メール", "保護者メールアドレス"},
	}
	requiredTeacherColumns = []string{"email", "name"}
	requiredStudentColumns = []string{"student_id", "name", "class_tag", "parent_email"}
)

type rosterTeacherWriter interface {
	Upsert(ctx context.Context, teacher *models.Teacher) error
}

type rosterStudentWriter interface {
	Upsert(ctx context.Context, student *models.Student) error
}

type accountCreator interface {
	CreateIfMissing(ctx context.Context, account *models.Account) (bool, error)
}

type rosterInvalidator interface {
	InvalidateRoster(ctx context.Context)
}

// RowError reports a rejected spreadsheet row.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// IssuedCredential is a temporary password for a newly created account.
type IssuedCredential struct {
	Email        string `json:"email"`
	TempPassword string `json:"temp_password"`
}

// ImportResult summarises a roster import.
type ImportResult struct {
	TeachersUpserted int                `json:"teachers_upserted"`
	StudentsUpserted int                `json:"students_upserted"`
	RowErrors        []RowError         `json:"row_errors"`
	NewAccounts      []IssuedCredential `json:"new_accounts"`
}

// RosterImportService loads teacher and student rosters from xlsx workbooks.
type RosterImportService struct {
	teachers    rosterTeacherWriter
	students    rosterStudentWriter
	accounts    accountCreator
	invalidator rosterInvalidator
	validator   *validation.Validator
	logger      *zap.Logger
	password    func() (string, error)
}

// NewRosterImportService constructs a RosterImportService. invalidator may be nil.
func NewRosterImportService(teachers rosterTeacherWriter, students rosterStudentWriter, accounts accountCreator, invalidator rosterInvalidator, validate *validation.Validator, logger *zap.Logger) *RosterImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &RosterImportService{
		teachers:    teachers,
		students:    students,
		accounts:    accounts,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
		password:    generateTempPassword,
	}
}

// ParseTeachers reads the first sheet of a teacher workbook.
func (s *RosterImportService) ParseTeachers(r io.Reader) ([]models.Teacher, []RowError, error) {
	rows, index, err := readSheet(r, teacherColumns, requiredTeacherColumns)
	if err != nil {
		return nil, nil, err
	}
	var teachers []models.Teacher
	var rowErrs []RowError
	seen := make(map[string]int)
	for i, row := range rows {
		rowNum := i + 2
		t := models.Teacher{
			Email:     normalizeEmail(cell(row, index["email"])),
			Name:      cell(row, index["name"]),
			ClassList: models.JoinClassTags(models.ParseClassTags(cell(row, index["class_list"]))),
		}
		if t.Email == "" && t.Name == "" && t.ClassList == "" {
			continue
		}
		if err := s.validator.Struct(t); err != nil {
			rowErrs = append(rowErrs, RowError{Sheet: "teachers", Row: rowNum, Message: s.validator.Message(err, "invalid row")})
			continue
		}
		if first, dup := seen[t.Email]; dup {
			rowErrs = append(rowErrs, RowError{Sheet: "teachers", Row: rowNum, Message: fmt.Sprintf("email duplicates row %d", first)})
			continue
		}
		seen[t.Email] = rowNum
		teachers = append(teachers, t)
	}
	return teachers, rowErrs, nil
}

// ParseStudents reads the first sheet of a student workbook.
func (s *RosterImportService) ParseStudents(r io.Reader) ([]models.Student, []RowError, error) {
	rows, index, err := readSheet(r, studentColumns, requiredStudentColumns)
	if err != nil {
		return nil, nil, err
	}
	var students []models.Student
	var rowErrs []RowError
	seen := make(map[string]int)
	for i, row := range rows {
		rowNum := i + 2
		st := models.Student{
			StudentID:   cell(row, index["student_id"]),
			Name:        cell(row, index["name"]),
			ClassTag:    cell(row, index["class_tag"]),
			ParentEmail: normalizeEmail(cell(row, index["parent_email"])),
		}
		if st.StudentID == "" && st.Name == "" && st.ClassTag == "" && st.ParentEmail == "" {
			continue
		}
		if err := s.validator.Struct(st); err != nil {
			rowErrs = append(rowErrs, RowError{Sheet: "students", Row: rowNum, Message: s.validator.Message(err, "invalid row")})
			continue
		}
		if models.IsAllClassTag(st.ClassTag) || strings.Contains(st.ClassTag, ",") {
			rowErrs = append(rowErrs, RowError{Sheet: "students", Row: rowNum, Message: "class_tag must name a single real class"})
			continue
		}
		if first, dup := seen[st.StudentID]; dup {
			rowErrs = append(rowErrs, RowError{Sheet: "students", Row: rowNum, Message: fmt.Sprintf("student_id duplicates row %d", first)})
			continue
		}
		seen[st.StudentID] = rowNum
		students = append(students, st)
	}
	return students, rowErrs, nil
}

// Import parses both workbooks, upserts valid rows and creates missing
// accounts. Either reader may be nil to skip that roster.
func (s *RosterImportService) Import(ctx context.Context, teachersFile, studentsFile io.Reader) (*ImportResult, error) {
	result := &ImportResult{RowErrors: []RowError{}, NewAccounts: []IssuedCredential{}}
	var teachers []models.Teacher
	var students []models.Student

	if teachersFile != nil {
		parsed, rowErrs, err := s.ParseTeachers(teachersFile)
		if err != nil {
			return nil, err
		}
		teachers = parsed
		result.RowErrors = append(result.RowErrors, rowErrs...)
	}
	if studentsFile != nil {
		parsed, rowErrs, err := s.ParseStudents(studentsFile)
		if err != nil {
			return nil, err
		}
		students = parsed
		result.RowErrors = append(result.RowErrors, rowErrs...)
	}

	emails := make(map[string]struct{})
	for i := range teachers {
		if err := s.teachers.Upsert(ctx, &teachers[i]); err != nil {
			return nil, appErrors.Unavailable(err, "failed to save teacher roster")
		}
		result.TeachersUpserted++
		emails[teachers[i].Email] = struct{}{}
	}
	for i := range students {
		if err := s.students.Upsert(ctx, &students[i]); err != nil {
			return nil, appErrors.Unavailable(err, "failed to save student roster")
		}
		result.StudentsUpserted++
		emails[students[i].ParentEmail] = struct{}{}
	}

	sorted := make([]string, 0, len(emails))
	for email := range emails {
		sorted = append(sorted, email)
	}
	sort.Strings(sorted)
	for _, email := range sorted {
		cred, err := s.ensureAccount(ctx, email)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			result.NewAccounts = append(result.NewAccounts, *cred)
		}
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateRoster(ctx)
	}
	s.logger.Info("roster imported",
		zap.Int("teachers", result.TeachersUpserted),
		zap.Int("students", result.StudentsUpserted),
		zap.Int("row_errors", len(result.RowErrors)),
		zap.Int("new_accounts", len(result.NewAccounts)),
	)
	return result, nil
}

func (s *RosterImportService) ensureAccount(ctx context.Context, email string) (*IssuedCredential, error) {
	password, err := s.password()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	created, err := s.accounts.CreateIfMissing(ctx, &models.Account{Email: email, PasswordHash: string(hash), Active: true})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to create account")
	}
	if !created {
		return nil, nil
	}
	return &IssuedCredential{Email: email, TempPassword: password}, nil
}

// readSheet returns the data rows of the first sheet and the column index of
// each canonical header (-1 when absent).
func readSheet(r io.Reader, columns map[string][]string, required []string) ([][]string, map[string]int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, "file is not a readable xlsx workbook")
	}
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, "failed to read worksheet")
	}
	if len(rows) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrSchema, "worksheet has no header row")
	}
	if len(rows)-1 > maxRosterRows {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("worksheet has more than %d rows", maxRosterRows))
	}

	index := headerIndex(rows[0], columns)
	var missing []string
	for _, col := range required {
		if index[col] < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrSchema, "missing required columns: "+strings.Join(missing, ", "))
	}
	return rows[1:], index, nil
}

func headerIndex(header []string, columns map[string][]string) map[string]int {
	index := make(map[string]int, len(columns))
	for canonical := range columns {
		index[canonical] = -1
	}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		for canonical, aliases := range columns {
			if index[canonical] >= 0 {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					index[canonical] = i
				}
			}
		}
	}
	return index
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func generateTempPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

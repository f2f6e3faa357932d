package models

import "time"

// Teacher is a row of the teacher roster.
type Teacher struct {
	Email     string    `db:"email" json:"email" validate:"required,email"`
	Name      string    `db:"name" json:"name" validate:"required"`
	ClassList string    `db:"class_list" json:"class_list"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Student is a row of the student roster. Each student has exactly one
// parent and one class.
type Student struct {
	StudentID   string    `db:"student_id" json:"student_id" validate:"required"`
	Name        string    `db:"name" json:"name" validate:"required"`
	ClassTag    string    `db:"class_tag" json:"class_tag" validate:"required"`
	ParentEmail string    `db:"parent_email" json:"parent_email" validate:"required,email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Roster is a point-in-time snapshot of both directory tables.
type Roster struct {
	Teachers []Teacher `json:"teachers"`
	Students []Student `json:"students"`
}

// Classes returns every class tag observed in the student roster.
func (r Roster) Classes() StringSet {
	classes := make(StringSet)
	for _, s := range r.Students {
		if s.ClassTag != "" && !IsAllClassTag(s.ClassTag) {
			classes.Add(s.ClassTag)
		}
	}
	return classes
}

package models

import "time"

// Role distinguishes the two kinds of signed-in users.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// Identity is the directory view of a signed-in email.
type Identity struct {
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	// AssignedClasses is already expanded: a teacher without a class list
	// carries every class seen in the student roster.
	AssignedClasses StringSet `json:"assigned_classes,omitempty"`
	LinkedStudentID string    `json:"linked_student_id,omitempty"`
	// LinkedStudentIDs lists every child of a parent, sorted, for switching.
	LinkedStudentIDs []string `json:"linked_student_ids,omitempty"`
}

// IsTeacher reports whether the identity has the teacher role.
func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

// Audience is what an identity can reach.
type Audience struct {
	ReachableStudents StringSet `json:"reachable_students"`
	ReachableClasses  StringSet `json:"reachable_classes"`
}

// Session is created at sign-in and passed explicitly to every operation.
type Session struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	Audience  Audience  `json:"audience"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfo summarises a session for API responses.
type SessionInfo struct {
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	DisplayName      string    `json:"display_name"`
	StudentID        string    `json:"student_id,omitempty"`
	LinkedStudentIDs []string  `json:"linked_student_ids,omitempty"`
	ReachableClasses []string  `json:"reachable_classes"`
	ReachableCount   int       `json:"reachable_student_count"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Info builds the response summary for the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Email:            s.Identity.Email,
		Role:             s.Identity.Role,
		DisplayName:      s.Identity.DisplayName,
		StudentID:        s.Identity.LinkedStudentID,
		LinkedStudentIDs: s.Identity.LinkedStudentIDs,
		ReachableClasses: s.Audience.ReachableClasses.Sorted(),
		ReachableCount:   len(s.Audience.ReachableStudents),
		ExpiresAt:        s.ExpiresAt,
	}
}

package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// ReadState tracks whether a parent has seen an individual message.
type ReadState string

const (
	ReadStateUnread ReadState = "unread"
	ReadStateRead   ReadState = "read"
)

// Valid reports whether the state is one of the known values.
func (r ReadState) Valid() bool {
	return r == ReadStateUnread || r == ReadStateRead
}

// Value implements driver.Valuer.
func (r ReadState) Value() (driver.Value, error) {
	return string(r), nil
}

// ContactKind selects broadcasts, individual messages or both in listings.
type ContactKind string

const (
	ContactKindAll        ContactKind = "all"
	ContactKindBroadcast  ContactKind = "broadcast"
	ContactKindIndividual ContactKind = "individual"
)

// Contact message columns that may change after the record is appended.
const (
	FieldHomeReply           = "home_reply"
	FieldReadState           = "read_state"
	FieldReplyAttachmentPath = "reply_attachment_path"
)

// ContactMessage is one entry in a student's contact log, or a broadcast
// when StudentID is nil.
type ContactMessage struct {
	ID                  string     `db:"id" json:"id"`
	StudentID           *string    `db:"student_id" json:"student_id,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	ContactDate         time.Time  `db:"contact_date" json:"contact_date"`
	SenderName          string     `db:"sender_name" json:"sender_name"`
	Message             string     `db:"message" json:"message"`
	ItemsNotice         string     `db:"items_notice" json:"items_notice,omitempty"`
	Remarks             string     `db:"remarks" json:"remarks,omitempty"`
	HomeReply           *string    `db:"home_reply" json:"home_reply,omitempty"`
	ReadState           *ReadState `db:"read_state" json:"read_state,omitempty"`
	AttachmentPath      string     `db:"attachment_path" json:"attachment_path,omitempty"`
	ReplyAttachmentPath string     `db:"reply_attachment_path" json:"reply_attachment_path,omitempty"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`

	AttachmentURL      string `db:"-" json:"attachment_url,omitempty"`
	ReplyAttachmentURL string `db:"-" json:"reply_attachment_url,omitempty"`
}

// IsBroadcast reports whether the message belongs to the shared broadcast log.
func (m ContactMessage) IsBroadcast() bool {
	return m.StudentID == nil
}

// Replied reports whether the parent has posted a non-blank reply.
func (m ContactMessage) Replied() bool {
	return m.HomeReply != nil && strings.TrimSpace(*m.HomeReply) != ""
}

// IsRead reports whether an individual message is marked read.
func (m ContactMessage) IsRead() bool {
	return m.ReadState != nil && *m.ReadState == ReadStateRead
}

// ContactFilter narrows a listing of visible messages.
type ContactFilter struct {
	Kind      ContactKind
	ReadState ReadState
	StudentID string
	Query     string
}

// SendIndividualRequest is a teacher message addressed to one student.
type SendIndividualRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	Date           string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Message        string `json:"message" validate:"required,notblank"`
	ItemsNotice    string `json:"items_notice"`
	Remarks        string `json:"remarks"`
	AttachmentPath string `json:"attachment_path"`
}

// SendBroadcastRequest is a teacher message addressed to every family.
type SendBroadcastRequest struct {
	Date           string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Message        string `json:"message" validate:"required,notblank"`
	ItemsNotice    string `json:"items_notice"`
	AttachmentPath string `json:"attachment_path"`
}

// ReplyRequest is a parent's reply to an individual message.
type ReplyRequest struct {
	Reply          string `json:"reply" validate:"required,notblank"`
	AttachmentPath string `json:"attachment_path"`
}

// ReadStateRequest sets the read state of an individual message.
type ReadStateRequest struct {
	ReadState ReadState `json:"read_state" validate:"required,oneof=unread read"`
}

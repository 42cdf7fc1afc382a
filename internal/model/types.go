package model

import (
	"strings"
	"time"
)

// Partition selects an isolated data set (e.g. "dev" or "prod").
// It is passed explicitly to every store and catalog call.
type Partition string

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen          Status = "Open"
	StatusNotApplicable Status = "N/A"
	StatusCancelled     Status = "Cancelled"
	StatusCompleted     Status = "Completed"
)

// ValidStatuses lists every status a task may hold.
var ValidStatuses = map[Status]bool{
	StatusOpen:          true,
	StatusNotApplicable: true,
	StatusCancelled:     true,
	StatusCompleted:     true,
}

// Terminal reports whether flag-driven logic must leave the status alone.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Closed reports whether the task is inactive (N/A or terminal).
func (s Status) Closed() bool {
	return s == StatusNotApplicable || s.Terminal()
}

// RetiredSuffix is appended to a task description when its flag is cleared.
const RetiredSuffix = " (No longer required)"

// Subject is an onboarding submission.
type Subject struct {
	ID            string          `json:"submission_id" yaml:"submission_id"`
	FirstName     string          `json:"LegalFirstName" yaml:"LegalFirstName"`
	LastName      string          `json:"LegalLastName" yaml:"LegalLastName"`
	Manager       string          `json:"Manager" yaml:"Manager"`
	Department    string          `json:"Department,omitempty" yaml:"Department,omitempty"`
	Location      string          `json:"Location,omitempty" yaml:"Location,omitempty"`
	PositionTitle string          `json:"PositionTitle,omitempty" yaml:"PositionTitle,omitempty"`
	Flags         map[string]bool `json:"flags" yaml:"flags"`
	Extra         map[string]any  `json:"extra,omitempty" yaml:"extra,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"-"`
}

// FullName is the display name copied onto every task of the subject.
func (s Subject) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

// Requested reports whether the named flag is set. Absent flags are false.
// Catalog flags without a _Requested or _Provided suffix land in Extra at the
// boundary, so Extra is read through Truthy when Flags has no entry.
func (s Subject) Requested(flag string) bool {
	if v, ok := s.Flags[flag]; ok {
		return v
	}
	return Truthy(s.Extra[flag])
}

// Template is a catalog entry: it maps one flag to a task definition.
type Template struct {
	Flag            string `json:"flag" yaml:"flag"`
	ShortCode       string `json:"short_code" yaml:"short_code"`
	Kind            string `json:"task_type" yaml:"task_type"`
	NamePrefix      string `json:"name_prefix" yaml:"name_prefix"`
	AssignedTo      string `json:"assigned_to" yaml:"assigned_to"`
	Description     string `json:"description" yaml:"description"`
	ToEmail         string `json:"to_email,omitempty" yaml:"to_email,omitempty"`
	ToPhone         string `json:"to_phone,omitempty" yaml:"to_phone,omitempty"`
	EmailSubject    string `json:"email_subject,omitempty" yaml:"email_subject,omitempty"`
	MessageTemplate string `json:"message_template,omitempty" yaml:"message_template,omitempty"`
}

// Destination returns where notifications for this template go: the email
// address when present, otherwise the phone number.
func (t Template) Destination() string {
	if t.ToEmail != "" {
		return t.ToEmail
	}
	return t.ToPhone
}

// Task is a checklist item derived from a subject and a template.
type Task struct {
	ID                 string    `json:"task_id"`
	Partition          Partition `json:"partition"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Kind               string    `json:"task_type"`
	AssignedTo         string    `json:"assignedTo"`
	EmployeeFullName   string    `json:"employee_full_name"`
	SubjectID          string    `json:"related_subject_id"`
	Manager            string    `json:"manager"`
	ToEmail            string    `json:"to_email,omitempty"`
	ToPhone            string    `json:"to_phone,omitempty"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
}

// NewTask builds the Open task for subject s and template tpl.
func NewTask(p Partition, s Subject, tpl Template, now time.Time) Task {
	name := s.FullName()
	return Task{
		ID:               ComposeTaskID(s.ID, tpl.ShortCode),
		Partition:        p,
		Name:             strings.TrimSpace(tpl.NamePrefix + " " + name),
		Description:      tpl.Description + " (Onboarding ID: " + s.ID + ")",
		Kind:             tpl.Kind,
		AssignedTo:       tpl.AssignedTo,
		EmployeeFullName: name,
		SubjectID:        s.ID,
		Manager:          s.Manager,
		ToEmail:          tpl.ToEmail,
		ToPhone:          tpl.ToPhone,
		Status:           StatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// RetiredDescription returns desc with RetiredSuffix appended once.
func RetiredDescription(desc string) string {
	if strings.HasSuffix(desc, RetiredSuffix) {
		return desc
	}
	return desc + RetiredSuffix
}

// TaskPatch is a partial update of a task. Nil fields are left unchanged.
type TaskPatch struct {
	Status             *Status
	Description        *string
	Manager            *string
	EmployeeFullName   *string
	CancellationReason *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.Description == nil && p.Manager == nil &&
		p.EmployeeFullName == nil && p.CancellationReason == nil
}

// Apply returns a copy of t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Manager != nil {
		t.Manager = *p.Manager
	}
	if p.EmployeeFullName != nil {
		t.EmployeeFullName = *p.EmployeeFullName
	}
	if p.CancellationReason != nil {
		t.CancellationReason = *p.CancellationReason
	}
	return t
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }

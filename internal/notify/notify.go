// Package notify renders and dispatches task notifications.
//
// Delivery is best effort. A Sink error is reported to the caller but never
// undoes the task change that produced the message.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/onboarding/internal/model"
)

// Event names the task transition a message announces.
type Event string

const (
	EventCreated        Event = "created"
	EventResumed        Event = "resumed"
	EventManagerChanged Event = "manager_changed"
	EventRetired        Event = "retired"
)

// Message is one rendered notification.
type Message struct {
	Partition   model.Partition `json:"partition"`
	SubjectID   string          `json:"subject_id"`
	TaskID      string          `json:"task_id"`
	Flag        string          `json:"flag"`
	Event       Event           `json:"event"`
	Destination string          `json:"destination"`
	Subject     string          `json:"subject"`
	Body        string          `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Sink delivers messages.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

var defaultBodies = map[Event]string{
	EventCreated:        "New onboarding task {task} for {employee} (manager: {manager}, onboarding ID: {subject_id}).",
	EventResumed:        "Onboarding task {task} for {employee} is required again (onboarding ID: {subject_id}).",
	EventManagerChanged: "Manager for onboarding task {task} is now {manager} (onboarding ID: {subject_id}).",
	EventRetired:        "Onboarding task {task} for {employee} is no longer required (onboarding ID: {subject_id}).",
}

const defaultSubject = "Onboarding task {event}: {task}"

// Render builds the message for task transitioning with ev. Placeholders
// {employee}, {subject_id}, {manager}, {task} and {event} are substituted in
// both the template's MessageTemplate and EmailSubject; empty templates fall
// back to built-in text. Destination is the template's email, else its phone.
func Render(tpl model.Template, task model.Task, ev Event, now time.Time) Message {
	r := strings.NewReplacer(
		"{employee}", task.EmployeeFullName,
		"{subject_id}", task.SubjectID,
		"{manager}", task.Manager,
		"{task}", task.Name,
		"{event}", string(ev),
	)
	body := tpl.MessageTemplate
	if body == "" {
		body = defaultBodies[ev]
	}
	subject := tpl.EmailSubject
	if subject == "" {
		subject = defaultSubject
	}
	return Message{
		Partition:   task.Partition,
		SubjectID:   task.SubjectID,
		TaskID:      task.ID,
		Flag:        tpl.Flag,
		Event:       ev,
		Destination: tpl.Destination(),
		Subject:     r.Replace(subject),
		Body:        r.Replace(body),
		CreatedAt:   now,
	}
}

// LogSink writes messages to a structured logger instead of delivering them.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"event", msg.Event,
		"task_id", msg.TaskID,
		"destination", msg.Destination,
		"subject", msg.Subject,
	)
	return nil
}

// Recorder keeps sent messages in memory, capped at the most recent Max.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	max      int
}

// NewRecorder creates a Recorder with a 1000-message cap.
func NewRecorder() *Recorder {
	return &Recorder{max: 1000}
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	if r.max > 0 && len(r.messages) > r.max {
		r.messages = r.messages[len(r.messages)-r.max:]
	}
	return nil
}

// Messages returns a copy of the recorded messages in send order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Reset drops all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// Multi fans a message out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []Sink

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for i, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Discard drops every message.
var Discard Sink = SinkFunc(func(context.Context, Message) error { return nil })

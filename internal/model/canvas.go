package model

import "time"

// Course is the subset of a Canvas course the tool reads.
type Course struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code,omitempty"`
}

// Assignment is a Canvas assignment. Optional fields are pointers; a nil
// QuizID means the assignment is not backed by a quiz.
type Assignment struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Published       bool       `json:"published"`
	DueAt           *time.Time `json:"due_at"`
	LockAt          *time.Time `json:"lock_at"`
	UnlockAt        *time.Time `json:"unlock_at"`
	QuizID          *int64     `json:"quiz_id,omitempty"`
	SubmissionTypes []string   `json:"submission_types"`
	HTMLURL         string     `json:"html_url,omitempty"`
}

// Quiz is a Canvas classic quiz.
type Quiz struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Published            bool       `json:"published"`
	DueAt                *time.Time `json:"due_at"`
	LockAt               *time.Time `json:"lock_at"`
	UnlockAt             *time.Time `json:"unlock_at"`
	ShowCorrectAnswersAt *time.Time `json:"show_correct_answers_at"`
	HideCorrectAnswersAt *time.Time `json:"hide_correct_answers_at"`
}

// User is returned by the users/self endpoint.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UpdatePayload is the edit body for one item. Date fields hold a normalized
// timestamp or "" which Canvas treats as no date.
type UpdatePayload struct {
	Published            bool    `json:"published"`
	DueAt                string  `json:"due_at"`
	LockAt               string  `json:"lock_at"`
	UnlockAt             string  `json:"unlock_at"`
	ShowCorrectAnswersAt *string `json:"show_correct_answers_at,omitempty"`
	HideCorrectAnswersAt *string `json:"hide_correct_answers_at,omitempty"`
}

// AssignmentView is an assignment as rendered by the listing endpoint,
// with dates projected into the configured local zone.
type AssignmentView struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Published            bool   `json:"published"`
	DueAt                string `json:"due_at"`
	LockAt               string `json:"lock_at"`
	UnlockAt             string `json:"unlock_at"`
	QuizID               *int64 `json:"quiz_id,omitempty"`
	ShowCorrectAnswersAt string `json:"show_correct_answers_at,omitempty"`
	HideCorrectAnswersAt string `json:"hide_correct_answers_at,omitempty"`
	IsQuiz               bool   `json:"is_quiz"`
	IsDiscussion         bool   `json:"is_discussion"`
}

// CourseAssignmentsResponse is returned by GET /course/:courseId/assignments.
type CourseAssignmentsResponse struct {
	Course      Course           `json:"course"`
	Assignments []AssignmentView `json:"assignments"`
}

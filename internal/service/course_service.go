package service

import (
	"context"
	"fmt"
	"time"

	"github.com/duedatechanger/api/internal/model"
)

// CourseReader is the read side of the Canvas client used for listings.
type CourseReader interface {
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
	ListAssignments(ctx context.Context, courseID string) ([]model.Assignment, error)
	ListQuizzes(ctx context.Context, courseID string) ([]model.Quiz, error)
}

// Localizer renders a timestamp in the display zone and format.
type Localizer interface {
	Localize(t *time.Time) string
}

// CourseService builds the assignment listing the edit form is rendered from.
type CourseService struct {
	canvas CourseReader
	dates  Localizer
}

func NewCourseService(canvas CourseReader, dates Localizer) *CourseService {
	return &CourseService{canvas: canvas, dates: dates}
}

// Assignments returns every assignment in the course with localized dates.
// Quiz-backed assignments also carry the quiz's answer visibility dates.
func (s *CourseService) Assignments(ctx context.Context, courseID string) (*model.CourseAssignmentsResponse, error) {
	course, err := s.canvas.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	assignments, err := s.canvas.ListAssignments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	quizzes, err := s.canvas.ListQuizzes(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	quizByID := make(map[int64]model.Quiz, len(quizzes))
	for _, q := range quizzes {
		quizByID[q.ID] = q
	}

	views := make([]model.AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		view := model.AssignmentView{
			ID:           a.ID,
			Name:         a.Name,
			Published:    a.Published,
			DueAt:        s.dates.Localize(a.DueAt),
			LockAt:       s.dates.Localize(a.LockAt),
			UnlockAt:     s.dates.Localize(a.UnlockAt),
			QuizID:       a.QuizID,
			IsQuiz:       hasSubmissionType(a, "online_quiz"),
			IsDiscussion: hasSubmissionType(a, "discussion_topic"),
		}
		if a.QuizID != nil {
			if q, ok := quizByID[*a.QuizID]; ok {
				view.ShowCorrectAnswersAt = s.dates.Localize(q.ShowCorrectAnswersAt)
				view.HideCorrectAnswersAt = s.dates.Localize(q.HideCorrectAnswersAt)
			}
		}
		views = append(views, view)
	}

	return &model.CourseAssignmentsResponse{Course: *course, Assignments: views}, nil
}

func hasSubmissionType(a model.Assignment, kind string) bool {
	for _, t := range a.SubmissionTypes {
		if t == kind {
			return true
		}
	}
	return false
}

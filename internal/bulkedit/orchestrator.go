// Package bulkedit applies a submitted bulk edit form to the assignments and
// quizzes of one course, reporting progress into the job record as it goes.
package bulkedit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/model"
)

// Canvas is the remote data source a bulk edit runs against.
type Canvas interface {
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
	GetAssignment(ctx context.Context, courseID, assignmentID string) (*model.Assignment, error)
	EditAssignment(ctx context.Context, courseID, assignmentID string, payload model.UpdatePayload) (*model.Assignment, error)
	GetQuiz(ctx context.Context, courseID, quizID string) (*model.Quiz, error)
	EditQuiz(ctx context.Context, courseID, quizID string, payload model.UpdatePayload) (*model.Quiz, error)
}

// Progress is the job being run. Report must persist before returning.
type Progress interface {
	Report(ctx context.Context, percent int, msg string, status model.JobStatus, isErr bool) error
	SetUpdatedList(list []model.UpdateResult)
	Meta() model.JobMeta
}

// DateNormalizer converts a form date into an API timestamp, or "" when the
// value does not parse.
type DateNormalizer interface {
	Normalize(raw string) string
}

type Orchestrator struct {
	canvas Canvas
	dates  DateNormalizer
	log    zerolog.Logger
}

func NewOrchestrator(canvas Canvas, dates DateNormalizer) *Orchestrator {
	return &Orchestrator{
		canvas: canvas,
		dates:  dates,
		log:    logger.Get().With().Str("component", "bulkedit").Logger(),
	}
}

// Run processes every item in form sequentially and stops at the first item
// that cannot be fetched or edited. Remote failures end the job with status
// failed and are not returned as errors; the returned error is reserved for
// failures to persist progress.
func (o *Orchestrator) Run(ctx context.Context, job Progress, courseID string, form map[string][]string) (model.JobMeta, error) {
	log := o.log.With().Str("course_id", courseID).Logger()

	if err := job.Report(ctx, 0, "Starting...", model.JobStatusStarted, false); err != nil {
		return job.Meta(), err
	}

	course, err := o.canvas.GetCourse(ctx, courseID)
	if err != nil {
		msg := fmt.Sprintf("Error getting course #%s.", courseID)
		log.Error().Err(err).Msg(msg)
		return fail(ctx, job, 0, msg)
	}
	scope := strconv.FormatInt(course.ID, 10)

	fieldMap := Aggregate(form)
	total := len(fieldMap)
	if total < 1 {
		return fail(ctx, job, 0, "There were no assignments to update.")
	}

	updated := make([]model.UpdateResult, 0, total)
	for i, itemID := range fieldMap.ItemIDs() {
		index := i + 1
		fields := fieldMap[itemID]
		percent := 100 * index / total

		msg := fmt.Sprintf("Updating Assignment #%s [%d of %d]", itemID, index, total)
		if err := job.Report(ctx, percent, msg, model.JobStatusProcessing, false); err != nil {
			return job.Meta(), err
		}

		result, err := o.updateItem(ctx, scope, itemID, fields)
		if err != nil {
			kind, id := "assignment", itemID
			if fields.IsQuiz() {
				kind, id = "quiz", fields[FieldQuizID]
			}
			msg := fmt.Sprintf("Error getting/editing %s #%s.", kind, id)
			log.Error().Err(err).Str("item_id", itemID).Msg(msg)

			job.SetUpdatedList(updated)
			return fail(ctx, job, percent, msg)
		}
		updated = append(updated, result)
	}

	job.SetUpdatedList(updated)
	msg := fmt.Sprintf("Successfully updated %d assignments.", len(updated))
	if err := job.Report(ctx, 100, msg, model.JobStatusComplete, false); err != nil {
		return job.Meta(), err
	}
	log.Info().Int("updated", len(updated)).Msg("Bulk edit complete")

	return job.Meta(), nil
}

// fail writes the terminal failed status and returns the resulting metadata.
func fail(ctx context.Context, job Progress, percent int, msg string) (model.JobMeta, error) {
	err := job.Report(ctx, percent, msg, model.JobStatusFailed, true)
	return job.Meta(), err
}

func (o *Orchestrator) updateItem(ctx context.Context, courseID, itemID string, fields Fields) (model.UpdateResult, error) {
	payload := BuildPayload(fields, o.dates)

	if fields.IsQuiz() {
		quizID := fields[FieldQuizID]
		if _, err := strconv.ParseUint(quizID, 10, 64); err != nil {
			return model.UpdateResult{}, fmt.Errorf("invalid quiz id %q: %w", quizID, err)
		}
		if _, err := o.canvas.GetQuiz(ctx, courseID, quizID); err != nil {
			return model.UpdateResult{}, err
		}
		quiz, err := o.canvas.EditQuiz(ctx, courseID, quizID, payload)
		if err != nil {
			return model.UpdateResult{}, err
		}
		return model.UpdateResult{ID: itemID, Title: quiz.Title, Type: model.ItemTypeQuiz}, nil
	}

	if _, err := o.canvas.GetAssignment(ctx, courseID, itemID); err != nil {
		return model.UpdateResult{}, err
	}
	assignment, err := o.canvas.EditAssignment(ctx, courseID, itemID, payload)
	if err != nil {
		return model.UpdateResult{}, err
	}
	return model.UpdateResult{ID: itemID, Title: assignment.Name, Type: model.ItemTypeAssignment}, nil
}

// BuildPayload turns one item's raw form values into an edit payload. The
// answer visibility dates are only set for quizzes.
func BuildPayload(fields Fields, dates DateNormalizer) model.UpdatePayload {
	payload := model.UpdatePayload{
		Published: fields[FieldPublished] == "on",
		DueAt:     dates.Normalize(fields[FieldDueAt]),
		LockAt:    dates.Normalize(fields[FieldLockAt]),
		UnlockAt:  dates.Normalize(fields[FieldUnlockAt]),
	}
	if fields.IsQuiz() {
		show := dates.Normalize(fields[FieldShowCorrectAnswersAt])
		hide := dates.Normalize(fields[FieldHideCorrectAnswersAt])
		payload.ShowCorrectAnswersAt = &show
		payload.HideCorrectAnswersAt = &hide
	}
	return payload
}

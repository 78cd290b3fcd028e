package bulkedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(map[string][]string{}))
	assert.Empty(t, Aggregate(nil))
}

func TestAggregate_IgnoresNonMatchingKeys(t *testing.T) {
	fm := Aggregate(map[string][]string{
		"abc-x":      {"1"},
		"42":         {"1"},
		"42-":        {"1"},
		"42-Due_At":  {"1"},
		"42-due-at":  {"1"},
		"x42-due_at": {"1"},
		"42-due_at2": {"1"},
		"csrf_token": {"t"},
		" 42-due_at": {"1"},
	})
	assert.Empty(t, fm)
}

func TestAggregate_GroupsByItem(t *testing.T) {
	fm := Aggregate(map[string][]string{
		"42-due_at":    {"v"},
		"42-published": {"on"},
		"7-lock_at":    {"w"},
		"other":        {"ignored"},
	})

	assert.Equal(t, FieldMap{
		"42": {"due_at": "v", "published": "on"},
		"7":  {"lock_at": "w"},
	}, fm)
}

func TestAggregate_EveryItemHasAField(t *testing.T) {
	fm := Aggregate(map[string][]string{"1-due_at": {""}, "2-published": {"on"}})
	for id, fields := range fm {
		assert.NotEmpty(t, fields, id)
	}
}

func TestAggregate_FirstValueWins(t *testing.T) {
	fm := Aggregate(map[string][]string{"1-due_at": {"a", "b"}, "2-due_at": {}})
	assert.Equal(t, FieldMap{"1": {"due_at": "a"}}, fm)
}

func TestItemIDs_NumericOrder(t *testing.T) {
	fm := FieldMap{"10": {"a": "1"}, "9": {"a": "1"}, "100": {"a": "1"}, "2": {"a": "1"}}
	assert.Equal(t, []string{"2", "9", "10", "100"}, fm.ItemIDs())
}

func TestFields_IsQuiz(t *testing.T) {
	assert.True(t, Fields{"assignment_type": "quiz", "quiz_id": "5"}.IsQuiz())
	assert.False(t, Fields{"assignment_type": "quiz"}.IsQuiz())
	assert.False(t, Fields{"assignment_type": "quiz", "quiz_id": ""}.IsQuiz())
	assert.False(t, Fields{"assignment_type": "assignment", "quiz_id": "5"}.IsQuiz())
	assert.False(t, Fields{}.IsQuiz())
}

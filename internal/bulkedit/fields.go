package bulkedit

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fieldKeyPattern = regexp.MustCompile(`^\d+-[a-z_]+$`)

// Form field names recognised per item.
const (
	FieldPublished            = "published"
	FieldDueAt                = "due_at"
	FieldLockAt               = "lock_at"
	FieldUnlockAt             = "unlock_at"
	FieldShowCorrectAnswersAt = "show_correct_answers_at"
	FieldHideCorrectAnswersAt = "hide_correct_answers_at"
	FieldAssignmentType       = "assignment_type"
	FieldQuizID               = "quiz_id"
)

// Fields holds the raw submitted values for one item.
type Fields map[string]string

// FieldMap groups submitted values by item id.
type FieldMap map[string]Fields

// Aggregate groups "<itemId>-<field>" form keys by item. Keys that do not
// match are ignored. When a key was submitted more than once the first value
// wins. An empty result means there is nothing to update.
func Aggregate(form map[string][]string) FieldMap {
	fieldMap := make(FieldMap)
	for key, values := range form {
		if !fieldKeyPattern.MatchString(key) || len(values) == 0 {
			continue
		}
		itemID, fieldName, _ := strings.Cut(key, "-")
		if fieldMap[itemID] == nil {
			fieldMap[itemID] = make(Fields)
		}
		fieldMap[itemID][fieldName] = values[0]
	}
	return fieldMap
}

// ItemIDs returns the map's item ids in ascending numeric order, which is the
// order items are processed in.
func (m FieldMap) ItemIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseUint(ids[i], 10, 64)
		b, errB := strconv.ParseUint(ids[j], 10, 64)
		if errA != nil || errB != nil || a == b {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}

// IsQuiz reports whether the item should be edited through the quiz endpoint.
func (f Fields) IsQuiz() bool {
	return f[FieldAssignmentType] == "quiz" && f[FieldQuizID] != ""
}

package quiz

import "context"

// QuizView is a quiz as shown to participants. The stored answer is
// deliberately not part of the view; grading stays server side.
type QuizView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	QuizType string   `json:"quiz_type"`
}

// GradeResult is the outcome of grading one selection.
type GradeResult struct {
	IsCorrect       bool   `json:"is_correct"`
	Explanation     string `json:"explanation"`
	CanonicalAnswer string `json:"canonical_answer"`
}

// Supplier selects, serves and grades quizzes for battles. GetQuizByID
// and GradeSubmission return (nil, nil) when the quiz does not exist;
// an error means the supplier itself is unavailable. No retries happen
// at this layer.
type Supplier interface {
	SelectQuizSet(ctx context.Context, fieldSlug string, count int) ([]string, error)
	GetQuizByID(ctx context.Context, quizID string) (*QuizView, error)
	GradeSubmission(ctx context.Context, quizID, selection string) (*GradeResult, error)
}

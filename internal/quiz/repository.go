package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Quiz types that cannot be auto-graded are excluded from battle sets.
var nonScorableTypes = []string{"free_text", "code_review"}

// Repository serves quizzes from postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SelectQuizSet picks count random scorable quiz ids for the field,
// without replacement.
func (r *Repository) SelectQuizSet(ctx context.Context, fieldSlug string, count int) ([]string, error) {
	query := `
		SELECT id
		FROM quizzes
		WHERE field_slug = $1 AND quiz_type <> ALL($2)
		ORDER BY random()
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, fieldSlug, pq.Array(nonScorableTypes), count)
	if err != nil {
		return nil, fmt.Errorf("failed to select quiz set: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) GetQuizByID(ctx context.Context, quizID string) (*QuizView, error) {
	query := `
		SELECT id, question, options, quiz_type
		FROM quizzes
		WHERE id = $1
	`
	var view QuizView
	var optionsJSON []byte
	err := r.db.QueryRowContext(ctx, query, quizID).Scan(
		&view.ID,
		&view.Question,
		&optionsJSON,
		&view.QuizType,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz %s: %w", quizID, err)
	}

	if err := json.Unmarshal(optionsJSON, &view.Options); err != nil {
		return nil, fmt.Errorf("failed to parse options for quiz %s: %w", quizID, err)
	}
	return &view, nil
}

func (r *Repository) GradeSubmission(ctx context.Context, quizID, selection string) (*GradeResult, error) {
	query := `
		SELECT answer, explanation
		FROM quizzes
		WHERE id = $1
	`
	var answer, explanation string
	err := r.db.QueryRowContext(ctx, query, quizID).Scan(&answer, &explanation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to grade quiz %s: %w", quizID, err)
	}

	return &GradeResult{
		IsCorrect:       normalizeAnswer(selection) == normalizeAnswer(answer),
		Explanation:     explanation,
		CanonicalAnswer: answer,
	}, nil
}

func normalizeAnswer(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

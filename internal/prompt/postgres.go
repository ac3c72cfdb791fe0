package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promptdeck/promptdeck/internal/models"
)

// PostgresStore persists prompts in two tables, prompts and prompt_versions,
// with a unique (prompt_id, version) constraint. Version creation and the
// current_version bump run in one transaction behind a row lock, so a prompt
// is never observable with a pointer that disagrees with its version list.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.title, p.description, p.current_version, p.created_at, p.updated_at,
		        u.id, u.name, u.email
		 FROM prompts p JOIN users u ON u.id = p.created_by
		 ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt,
			&p.CreatedBy.ID, &p.CreatedBy.Name, &p.CreatedBy.Email); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		index[p.ID] = len(prompts)
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	if len(prompts) == 0 {
		return []models.Prompt{}, nil
	}

	// One pass over all versions, grouped back onto their prompts.
	vrows, err := s.db.Query(ctx,
		`SELECT v.id, v.prompt_id, v.version, v.messages, v.notes, v.created_at,
		        u.id, u.name, u.email
		 FROM prompt_versions v JOIN users u ON u.id = v.created_by
		 ORDER BY v.prompt_id, v.version`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		v, err := scanVersion(vrows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[v.PromptID]; ok {
			prompts[i].Versions = append(prompts[i].Versions, *v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return prompts, nil
}

func (s *PostgresStore) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT p.id, p.title, p.description, p.current_version, p.created_at, p.updated_at,
		        u.id, u.name, u.email
		 FROM prompts p JOIN users u ON u.id = p.created_by
		 WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt,
		&p.CreatedBy.ID, &p.CreatedBy.Name, &p.CreatedBy.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}

	versions, err := s.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Versions = versions
	return &p, nil
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, params CreatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUser(ctx, tx, params.CreatedBy); err != nil {
		return nil, err
	}

	var p models.Prompt
	p.CreatedBy = params.CreatedBy
	err = tx.QueryRow(ctx,
		`INSERT INTO prompts (id, title, description, created_by, current_version)
		 VALUES ($1, $2, $3, $4, 1)
		 RETURNING id, title, description, current_version, created_at, updated_at`,
		uuid.New(), params.Title, params.Description, params.CreatedBy.ID,
	).Scan(&p.ID, &p.Title, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}

	messages, err := json.Marshal(params.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	v := models.Version{PromptID: p.ID, Version: 1, Messages: models.CloneMessages(params.Messages), CreatedBy: params.CreatedBy}
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (id, prompt_id, version, messages, notes, created_by)
		 VALUES ($1, $2, 1, $3, '', $4)
		 RETURNING id, created_at`,
		uuid.New(), p.ID, messages, params.CreatedBy.ID,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	p.Versions = []models.Version{v}
	return &p, nil
}

func (s *PostgresStore) UpdatePrompt(ctx context.Context, id uuid.UUID, params UpdatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE prompts
		 SET title = COALESCE($2::text, title), description = COALESCE($3::text, description), updated_at = now()
		 WHERE id = $1`,
		id, params.Title, params.Description)
	if err != nil {
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetPrompt(ctx, id)
}

func (s *PostgresStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	// Versions, comments and evals go with the prompt via ON DELETE CASCADE.
	tag, err := s.db.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.Version, error) {
	if err := s.ensurePrompt(ctx, promptID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT v.id, v.prompt_id, v.version, v.messages, v.notes, v.created_at,
		        u.id, u.name, u.email
		 FROM prompt_versions v JOIN users u ON u.id = v.created_by
		 WHERE v.prompt_id = $1 ORDER BY v.version`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*models.Version, error) {
	row := s.db.QueryRow(ctx,
		`SELECT v.id, v.prompt_id, v.version, v.messages, v.notes, v.created_at,
		        u.id, u.name, u.email
		 FROM prompt_versions v JOIN users u ON u.id = v.created_by
		 WHERE v.prompt_id = $1 AND v.version = $2`, promptID, number)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *PostgresStore) CreateVersion(ctx context.Context, promptID uuid.UUID, params CreateVersionParams) (*models.Version, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes same-prompt appends; concurrent writers queue here
	// instead of computing the same next number.
	var current int
	err = tx.QueryRow(ctx, `SELECT current_version FROM prompts WHERE id = $1 FOR UPDATE`, promptID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}

	if err := upsertUser(ctx, tx, params.CreatedBy); err != nil {
		return nil, err
	}

	messages, err := json.Marshal(params.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	v := models.Version{
		PromptID:  promptID,
		Version:   current + 1,
		Messages:  models.CloneMessages(params.Messages),
		CreatedBy: params.CreatedBy,
		Notes:     params.Notes,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (id, prompt_id, version, messages, notes, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		uuid.New(), promptID, v.Version, messages, params.Notes, params.CreatedBy.ID,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &ConflictError{PromptID: promptID, Version: v.Version}
		}
		return nil, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE prompts SET current_version = $1, updated_at = $2 WHERE id = $3`,
		v.Version, v.CreatedAt, promptID)
	if err != nil {
		return nil, fmt.Errorf("update current version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, promptID uuid.UUID) ([]models.Comment, error) {
	if err := s.ensurePrompt(ctx, promptID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.prompt_id, c.content, c.created_at, u.id, u.name, u.email
		 FROM comments c JOIN users u ON u.id = c.created_by
		 WHERE c.prompt_id = $1 ORDER BY c.created_at`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PromptID, &c.Content, &c.CreatedAt,
			&c.CreatedBy.ID, &c.CreatedBy.Name, &c.CreatedBy.Email); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) AddComment(ctx context.Context, promptID uuid.UUID, params AddCommentParams) (*models.Comment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensurePrompt(ctx, promptID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUser(ctx, tx, params.CreatedBy); err != nil {
		return nil, err
	}

	c := models.Comment{PromptID: promptID, Content: params.Content, CreatedBy: params.CreatedBy}
	err = tx.QueryRow(ctx,
		`INSERT INTO comments (id, prompt_id, content, created_by)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		uuid.New(), promptID, params.Content, params.CreatedBy.ID,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListEvals(ctx context.Context, promptID uuid.UUID, number int) ([]models.Eval, error) {
	v, err := s.GetVersion(ctx, promptID, number)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.version_id, e.score, e.notes, e.created_at, u.id, u.name, u.email
		 FROM evals e JOIN users u ON u.id = e.created_by
		 WHERE e.version_id = $1 ORDER BY e.created_at`, v.ID)
	if err != nil {
		return nil, fmt.Errorf("list evals: %w", err)
	}
	defer rows.Close()

	var evals []models.Eval
	for rows.Next() {
		var e models.Eval
		if err := rows.Scan(&e.ID, &e.VersionID, &e.Score, &e.Notes, &e.CreatedAt,
			&e.CreatedBy.ID, &e.CreatedBy.Name, &e.CreatedBy.Email); err != nil {
			return nil, fmt.Errorf("scan eval: %w", err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

func (s *PostgresStore) CreateEval(ctx context.Context, promptID uuid.UUID, number int, params CreateEvalParams) (*models.Eval, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	v, err := s.GetVersion(ctx, promptID, number)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUser(ctx, tx, params.CreatedBy); err != nil {
		return nil, err
	}

	e := models.Eval{VersionID: v.ID, Score: params.Score, Notes: params.Notes, CreatedBy: params.CreatedBy}
	err = tx.QueryRow(ctx,
		`INSERT INTO evals (id, version_id, score, notes, created_by)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		uuid.New(), v.ID, params.Score, params.Notes, params.CreatedBy.ID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert eval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) ensurePrompt(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM prompts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check prompt: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*models.Version, error) {
	var v models.Version
	var messages []byte
	err := row.Scan(&v.ID, &v.PromptID, &v.Version, &messages, &v.Notes, &v.CreatedAt,
		&v.CreatedBy.ID, &v.CreatedBy.Name, &v.CreatedBy.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}
	if err := json.Unmarshal(messages, &v.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &v, nil
}

// upsertUser records the creator identity alongside the entities that
// reference it. Name and email updates ride along; the id never changes.
func upsertUser(ctx context.Context, tx pgx.Tx, u models.User) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
		u.ID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

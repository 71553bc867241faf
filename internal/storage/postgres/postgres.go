package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community_service/internal/config"
	"community_service/internal/models"
	"community_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, email, name, nickname, login_method, password_hash, is_verified, verification_token, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	var passHash *string
	if u.PassHash != nil {
		s := string(u.PassHash)
		passHash = &s
	}

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		u.Nickname,
		u.LoginMethod,
		passHash,
		u.IsVerified,
		u.VerificationToken,
		u.Role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, email, name, nickname, login_method, password_hash, is_verified, verification_token, role, created_at, last_signed_in`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		passHash *string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Nickname,
		&u.LoginMethod,
		&passHash,
		&u.IsVerified,
		&u.VerificationToken,
		&u.Role,
		&u.CreatedAt,
		&u.LastSignedIn,
	)
	if err != nil {
		return models.User{}, err
	}

	if passHash != nil {
		u.PassHash = []byte(*passHash)
	}

	return u, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

// ConsumeVerificationToken flips is_verified and clears the token in a
// single conditional update, so a token can be consumed exactly once:
// of two concurrent attempts with the same token only one matches.
func (r *PostgresRepo) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	const op = "storage.postgres.ConsumeVerificationToken"

	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
		RETURNING id;
	`

	var id string

	err := r.pool.QueryRow(ctx, query, token).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrTokenNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// RotateVerificationToken replaces the stored token, invalidating any
// previously issued one. The update is conditional on the account still
// being unverified: a verify landing first leaves zero rows, so a
// verified account can never end up holding a fresh token.
func (r *PostgresRepo) RotateVerificationToken(ctx context.Context, userID, token string) error {
	const op = "storage.postgres.RotateVerificationToken"

	query := `UPDATE users SET verification_token = $2 WHERE id = $1 AND NOT is_verified;`

	tag, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdateLastSignedIn(ctx context.Context, userID string, at time.Time) error {
	const op = "storage.postgres.UpdateLastSignedIn"

	query := `UPDATE users SET last_signed_in = $2 WHERE id = $1;`

	if _, err := r.pool.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) AllUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.postgres.AllUsers"

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return users, nil
}

func (r *PostgresRepo) CreateSunoPost(ctx context.Context, p models.SunoPost) (int64, error) {
	const op = "storage.postgres.CreateSunoPost"

	query := `
		INSERT INTO suno_posts (user_id, youtube_url, comment, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, p.UserID, p.YoutubeURL, p.Comment, p.Category).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) SunoPosts(ctx context.Context, category string) ([]models.SunoPost, error) {
	const op = "storage.postgres.SunoPosts"

	query := `
		SELECT id, user_id, youtube_url, comment, category, created_at
		FROM suno_posts
		WHERE $1 = '' OR category = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var posts []models.SunoPost

	for rows.Next() {
		var p models.SunoPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.YoutubeURL, &p.Comment, &p.Category, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		posts = append(posts, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return posts, nil
}

func (r *PostgresRepo) SunoPostByID(ctx context.Context, id int64) (models.SunoPost, error) {
	query := `
		SELECT id, user_id, youtube_url, comment, category, created_at
		FROM suno_posts
		WHERE id = $1;
	`

	var p models.SunoPost

	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.UserID, &p.YoutubeURL, &p.Comment, &p.Category, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SunoPost{}, storage.ErrPostNotFound
		}

		return models.SunoPost{}, err
	}

	return p, nil
}

func (r *PostgresRepo) DeleteSunoPost(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteSunoPost"

	tag, err := r.pool.Exec(ctx, `DELETE FROM suno_posts WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}

	return nil
}

func (r *PostgresRepo) CreateQuestion(ctx context.Context, q models.ManusQuestion) (int64, error) {
	const op = "storage.postgres.CreateQuestion"

	query := `
		INSERT INTO manus_questions (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, q.UserID, q.Title, q.Content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) Questions(ctx context.Context, userID string) ([]models.ManusQuestion, error) {
	const op = "storage.postgres.Questions"

	query := `
		SELECT id, user_id, title, content, created_at
		FROM manus_questions
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var questions []models.ManusQuestion

	for rows.Next() {
		var q models.ManusQuestion
		if err := rows.Scan(&q.ID, &q.UserID, &q.Title, &q.Content, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		questions = append(questions, q)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return questions, nil
}

func (r *PostgresRepo) QuestionByID(ctx context.Context, id int64) (models.ManusQuestion, error) {
	query := `
		SELECT id, user_id, title, content, created_at
		FROM manus_questions
		WHERE id = $1;
	`

	var q models.ManusQuestion

	err := r.pool.QueryRow(ctx, query, id).Scan(&q.ID, &q.UserID, &q.Title, &q.Content, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ManusQuestion{}, storage.ErrQuestionNotFound
		}

		return models.ManusQuestion{}, err
	}

	return q, nil
}

func (r *PostgresRepo) CreateAnswer(ctx context.Context, a models.ManusAnswer) (int64, error) {
	const op = "storage.postgres.CreateAnswer"

	query := `
		INSERT INTO manus_answers (question_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, a.QuestionID, a.UserID, a.Content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) AnswersByQuestionID(ctx context.Context, questionID int64) ([]models.ManusAnswer, error) {
	const op = "storage.postgres.AnswersByQuestionID"

	query := `
		SELECT id, question_id, user_id, content, created_at
		FROM manus_answers
		WHERE question_id = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var answers []models.ManusAnswer

	for rows.Next() {
		var a models.ManusAnswer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		answers = append(answers, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return answers, nil
}

func (r *PostgresRepo) ActiveAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	return r.announcements(ctx, true)
}

func (r *PostgresRepo) AllAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	return r.announcements(ctx, false)
}

func (r *PostgresRepo) announcements(ctx context.Context, activeOnly bool) ([]models.Announcement, error) {
	const op = "storage.postgres.announcements"

	query := `
		SELECT id, content, is_active, created_at, updated_at
		FROM announcements
		WHERE NOT $1 OR is_active
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []models.Announcement

	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Content, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return items, nil
}

func (r *PostgresRepo) CreateAnnouncement(ctx context.Context, content string) (int64, error) {
	const op = "storage.postgres.CreateAnnouncement"

	query := `
		INSERT INTO announcements (content, is_active)
		VALUES ($1, TRUE)
		RETURNING id;
	`

	var id int64

	if err := r.pool.QueryRow(ctx, query, content).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) UpdateAnnouncement(ctx context.Context, id int64, content string, isActive bool) error {
	const op = "storage.postgres.UpdateAnnouncement"

	query := `
		UPDATE announcements
		SET content = $2, is_active = $3, updated_at = NOW()
		WHERE id = $1;
	`

	tag, err := r.pool.Exec(ctx, query, id, content, isActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAnnouncementNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteAnnouncement(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteAnnouncement"

	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAnnouncementNotFound
	}

	return nil
}

func (r *PostgresRepo) Setting(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM site_settings WHERE key = $1;`

	var value string

	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrSettingNotFound
		}

		return "", err
	}

	return value, nil
}

func (r *PostgresRepo) SetSetting(ctx context.Context, key, value string) error {
	const op = "storage.postgres.SetSetting"

	query := `
		INSERT INTO site_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
	`

	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}

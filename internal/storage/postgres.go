package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidtube/internal/models"
)

// PostgresConfig describes how the repository initialises its Postgres
// connection pool.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema bootstrap statements.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, refresh_token_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user          models.User
		refreshToken  sql.NullString
		refreshExpiry sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.AvatarURL, &user.CoverImageURL, &user.PasswordHash,
		&refreshToken, &refreshExpiry, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	if refreshToken.Valid {
		user.RefreshToken = refreshToken.String
	}
	if refreshExpiry.Valid {
		expiry := refreshExpiry.Time.UTC()
		user.RefreshTokenExpiresAt = &expiry
	}
	return user, nil
}

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, published, created_at, updated_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Description,
		&video.VideoURL, &video.ThumbnailURL, &video.DurationSeconds,
		&video.Views, &video.Published, &video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (r *postgresRepository) userExists(ctx context.Context, id string) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

func (r *postgresRepository) videoExists(ctx context.Context, id string) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM videos WHERE id = $1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("video %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("check video: %w", err)
	}
	return nil
}

// User operations

func (r *postgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username, err := NormalizeUsername(params.Username)
	if err != nil {
		return models.User{}, fmt.Errorf("normalize username: %w", err)
	}
	email := NormalizeEmail(params.Email)

	now := time.Now().UTC()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(params.FullName),
		AvatarURL:     params.AvatarURL,
		CoverImageURL: params.CoverImageURL,
		PasswordHash:  params.PasswordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return models.User{}, mapPgError("insert user", err)
	}
	return user, nil
}

func (r *postgresRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, mapPgError("select user", err)
	}
	return user, nil
}

func (r *postgresRepository) FindUserByLogin(ctx context.Context, identifier string) (models.User, error) {
	email := NormalizeEmail(identifier)
	username, usernameErr := NormalizeUsername(identifier)
	if usernameErr != nil {
		username = ""
	}

	row := r.pool.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE email = $1 OR username = $2
    `, email, username)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, mapPgError("select user by login", err)
	}
	return user, nil
}

func (r *postgresRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error) {
	var email *string
	if update.Email != nil {
		normalized := NormalizeEmail(*update.Email)
		email = &normalized
	}
	var fullName *string
	if update.FullName != nil {
		trimmed := strings.TrimSpace(*update.FullName)
		fullName = &trimmed
	}

	row := r.pool.QueryRow(ctx, `
        UPDATE users
        SET email = COALESCE($2, email),
            full_name = COALESCE($3, full_name),
            avatar_url = COALESCE($4, avatar_url),
            cover_image_url = COALESCE($5, cover_image_url),
            updated_at = $6
        WHERE id = $1
        RETURNING `+userColumns+`
    `, id, email, fullName, update.AvatarURL, update.CoverImageURL, time.Now().UTC())
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, mapPgError("update user", err)
	}
	return user, nil
}

func (r *postgresRepository) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, id, passwordHash, time.Now().UTC())
	if err != nil {
		return mapPgError("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *postgresRepository) SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE users SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = $4 WHERE id = $1
    `, id, token, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return mapPgError("update refresh token", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *postgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE users SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = $2 WHERE id = $1
    `, id, time.Now().UTC())
	if err != nil {
		return mapPgError("clear refresh token", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *postgresRepository) PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
        UPDATE users
        SET refresh_token = NULL, refresh_token_expires_at = NULL
        WHERE refresh_token IS NOT NULL AND refresh_token_expires_at <= $1
    `, now.UTC())
	if err != nil {
		return 0, mapPgError("purge refresh tokens", err)
	}
	return int(tag.RowsAffected()), nil
}

// Video operations

func (r *postgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	now := time.Now().UTC()
	video := models.Video{
		ID:              uuid.NewString(),
		OwnerID:         params.OwnerID,
		Title:           strings.TrimSpace(params.Title),
		Description:     strings.TrimSpace(params.Description),
		VideoURL:        params.VideoURL,
		ThumbnailURL:    params.ThumbnailURL,
		DurationSeconds: params.DurationSeconds,
		Published:       params.Published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.VideoURL, video.ThumbnailURL, video.DurationSeconds, video.Published, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		return models.Video{}, mapPgError("insert video", err)
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		return models.Video{}, mapPgError("select video", err)
	}
	return video, nil
}

func (r *postgresRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE videos
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            thumbnail_url = COALESCE($4, thumbnail_url),
            published = COALESCE($5, published),
            updated_at = $6
        WHERE id = $1
        RETURNING `+videoColumns+`
    `, id, update.Title, update.Description, update.ThumbnailURL, update.Published, time.Now().UTC())
	video, err := scanVideo(row)
	if err != nil {
		return models.Video{}, mapPgError("update video", err)
	}
	return video, nil
}

func (r *postgresRepository) DeleteVideo(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete video: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        DELETE FROM likes
        WHERE (target_kind = 'video' AND target_id = $1)
           OR (target_kind = 'comment' AND target_id IN (SELECT id FROM comments WHERE video_id = $1))
    `, id)
	if err != nil {
		return mapPgError("delete video likes", err)
	}

	// comments and playlist references cascade from the video row
	tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return mapPgError("delete video", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete video: %w", err)
	}
	return nil
}

var videoSortColumns = map[string]string{
	"createdAt": "v.created_at",
	"views":     "v.views",
	"duration":  "v.duration_seconds",
	"title":     "v.title",
}

func (r *postgresRepository) ListVideos(ctx context.Context, filter VideoFilter, page Page) ([]VideoWithOwner, int64, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.PublishedOnly {
		conditions = append(conditions, "v.published")
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("v.owner_id = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+strings.ToLower(filter.Query)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(v.title) LIKE $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos v`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError("count videos", err)
	}

	sortColumn, ok := videoSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "v.created_at"
	}
	direction := "DESC"
	if filter.SortAscending {
		direction = "ASC"
	}

	query := `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
               v.duration_seconds, v.views, v.published, v.created_at, v.updated_at,
               u.id, u.username, u.full_name, u.avatar_url
        FROM videos v
        JOIN users u ON u.id = v.owner_id` + where +
		fmt.Sprintf(" ORDER BY %s %s, v.id", sortColumn, direction)
	if page.Size > 0 {
		args = append(args, page.Size)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, page.Offset())
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query videos", err)
	}
	defer rows.Close()

	items := make([]VideoWithOwner, 0, page.Size)
	for rows.Next() {
		var item VideoWithOwner
		if err := rows.Scan(&item.Video.ID, &item.Video.OwnerID, &item.Video.Title, &item.Video.Description,
			&item.Video.VideoURL, &item.Video.ThumbnailURL, &item.Video.DurationSeconds,
			&item.Video.Views, &item.Video.Published, &item.Video.CreatedAt, &item.Video.UpdatedAt,
			&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.AvatarURL); err != nil {
			return nil, 0, fmt.Errorf("scan video: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate videos: %w", err)
	}
	return items, total, nil
}

func (r *postgresRepository) IncrementVideoViews(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return mapPgError("increment views", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

// Comment operations

func (r *postgresRepository) CreateComment(ctx context.Context, ownerID, videoID, content string) (models.Comment, error) {
	now := time.Now().UTC()
	comment := models.Comment{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		VideoID:   videoID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO comments (id, owner_id, video_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comment.ID, comment.OwnerID, comment.VideoID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		return models.Comment{}, mapPgError("insert comment", err)
	}
	return comment, nil
}

func (r *postgresRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	err := r.pool.QueryRow(ctx, `
        SELECT id, owner_id, video_id, content, created_at, updated_at FROM comments WHERE id = $1
    `, id).Scan(&comment.ID, &comment.OwnerID, &comment.VideoID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return models.Comment{}, mapPgError("select comment", err)
	}
	return comment, nil
}

func (r *postgresRepository) UpdateComment(ctx context.Context, id, content string) (models.Comment, error) {
	var comment models.Comment
	err := r.pool.QueryRow(ctx, `
        UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1
        RETURNING id, owner_id, video_id, content, created_at, updated_at
    `, id, strings.TrimSpace(content), time.Now().UTC()).Scan(
		&comment.ID, &comment.OwnerID, &comment.VideoID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return models.Comment{}, mapPgError("update comment", err)
	}
	return comment, nil
}

func (r *postgresRepository) DeleteComment(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete comment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE target_kind = 'comment' AND target_id = $1`, id); err != nil {
		return mapPgError("delete comment likes", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return mapPgError("delete comment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete comment: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListVideoComments(ctx context.Context, videoID string, page Page) ([]CommentWithOwner, int64, error) {
	if err := r.videoExists(ctx, videoID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID).Scan(&total); err != nil {
		return nil, 0, mapPgError("count comments", err)
	}

	query := `
        SELECT c.id, c.owner_id, c.video_id, c.content, c.created_at, c.updated_at,
               u.id, u.username, u.full_name, u.avatar_url
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1
        ORDER BY c.created_at DESC, c.id`
	args := []any{videoID}
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query comments", err)
	}
	defer rows.Close()

	items := make([]CommentWithOwner, 0, page.Size)
	for rows.Next() {
		var item CommentWithOwner
		if err := rows.Scan(&item.Comment.ID, &item.Comment.OwnerID, &item.Comment.VideoID,
			&item.Comment.Content, &item.Comment.CreatedAt, &item.Comment.UpdatedAt,
			&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.AvatarURL); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comments: %w", err)
	}
	return items, total, nil
}

// Tweet operations

func (r *postgresRepository) CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error) {
	now := time.Now().UTC()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO tweets (id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, tweet.ID, tweet.OwnerID, tweet.Content, tweet.CreatedAt, tweet.UpdatedAt)
	if err != nil {
		return models.Tweet{}, mapPgError("insert tweet", err)
	}
	return tweet, nil
}

func (r *postgresRepository) GetTweet(ctx context.Context, id string) (models.Tweet, error) {
	var tweet models.Tweet
	err := r.pool.QueryRow(ctx, `
        SELECT id, owner_id, content, created_at, updated_at FROM tweets WHERE id = $1
    `, id).Scan(&tweet.ID, &tweet.OwnerID, &tweet.Content, &tweet.CreatedAt, &tweet.UpdatedAt)
	if err != nil {
		return models.Tweet{}, mapPgError("select tweet", err)
	}
	return tweet, nil
}

func (r *postgresRepository) UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error) {
	var tweet models.Tweet
	err := r.pool.QueryRow(ctx, `
        UPDATE tweets SET content = $2, updated_at = $3 WHERE id = $1
        RETURNING id, owner_id, content, created_at, updated_at
    `, id, strings.TrimSpace(content), time.Now().UTC()).Scan(
		&tweet.ID, &tweet.OwnerID, &tweet.Content, &tweet.CreatedAt, &tweet.UpdatedAt)
	if err != nil {
		return models.Tweet{}, mapPgError("update tweet", err)
	}
	return tweet, nil
}

func (r *postgresRepository) DeleteTweet(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete tweet: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE target_kind = 'tweet' AND target_id = $1`, id); err != nil {
		return mapPgError("delete tweet likes", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tweets WHERE id = $1`, id)
	if err != nil {
		return mapPgError("delete tweet", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete tweet: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListUserTweets(ctx context.Context, userID string, page Page) ([]TweetWithOwner, int64, error) {
	if err := r.userExists(ctx, userID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tweets WHERE owner_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapPgError("count tweets", err)
	}

	query := `
        SELECT t.id, t.owner_id, t.content, t.created_at, t.updated_at,
               u.id, u.username, u.full_name, u.avatar_url
        FROM tweets t
        JOIN users u ON u.id = t.owner_id
        WHERE t.owner_id = $1
        ORDER BY t.created_at DESC, t.id`
	args := []any{userID}
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query tweets", err)
	}
	defer rows.Close()

	items := make([]TweetWithOwner, 0, page.Size)
	for rows.Next() {
		var item TweetWithOwner
		if err := rows.Scan(&item.Tweet.ID, &item.Tweet.OwnerID, &item.Tweet.Content,
			&item.Tweet.CreatedAt, &item.Tweet.UpdatedAt,
			&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.AvatarURL); err != nil {
			return nil, 0, fmt.Errorf("scan tweet: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tweets: %w", err)
	}
	return items, total, nil
}

// Like operations

func (r *postgresRepository) ToggleLike(ctx context.Context, userID string, kind models.LikeTarget, targetID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
        DELETE FROM likes WHERE user_id = $1 AND target_kind = $2 AND target_id = $3
    `, userID, string(kind), targetID)
	if err != nil {
		return false, mapPgError("delete like", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO likes (id, user_id, target_kind, target_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, uuid.NewString(), userID, string(kind), targetID, time.Now().UTC())
	if err != nil {
		return false, mapPgError("insert like", err)
	}
	return true, nil
}

func (r *postgresRepository) ListLikedVideos(ctx context.Context, userID string) ([]VideoWithOwner, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
               v.duration_seconds, v.views, v.published, v.created_at, v.updated_at,
               u.id, u.username, u.full_name, u.avatar_url
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        JOIN users u ON u.id = v.owner_id
        WHERE l.user_id = $1 AND l.target_kind = 'video'
        ORDER BY l.created_at DESC, l.id
    `, userID)
	if err != nil {
		return nil, mapPgError("query liked videos", err)
	}
	defer rows.Close()

	items := make([]VideoWithOwner, 0)
	for rows.Next() {
		var item VideoWithOwner
		if err := rows.Scan(&item.Video.ID, &item.Video.OwnerID, &item.Video.Title, &item.Video.Description,
			&item.Video.VideoURL, &item.Video.ThumbnailURL, &item.Video.DurationSeconds,
			&item.Video.Views, &item.Video.Published, &item.Video.CreatedAt, &item.Video.UpdatedAt,
			&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}
	return items, nil
}

// Playlist operations

func (r *postgresRepository) playlistVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT video_id FROM playlist_videos WHERE playlist_id = $1 ORDER BY position
    `, playlistID)
	if err != nil {
		return nil, mapPgError("query playlist videos", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan playlist video: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist videos: %w", err)
	}
	return ids, nil
}

func (r *postgresRepository) CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error) {
	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, mapPgError("insert playlist", err)
	}
	return playlist, nil
}

func (r *postgresRepository) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.pool.QueryRow(ctx, `
        SELECT id, owner_id, name, description, created_at, updated_at FROM playlists WHERE id = $1
    `, id).Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, mapPgError("select playlist", err)
	}

	videoIDs, err := r.playlistVideoIDs(ctx, id)
	if err != nil {
		return models.Playlist{}, err
	}
	playlist.VideoIDs = videoIDs
	return playlist, nil
}

func (r *postgresRepository) UpdatePlaylist(ctx context.Context, id, name, description string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.pool.QueryRow(ctx, `
        UPDATE playlists SET name = $2, description = $3, updated_at = $4 WHERE id = $1
        RETURNING id, owner_id, name, description, created_at, updated_at
    `, id, strings.TrimSpace(name), strings.TrimSpace(description), time.Now().UTC()).Scan(
		&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, mapPgError("update playlist", err)
	}

	videoIDs, err := r.playlistVideoIDs(ctx, id)
	if err != nil {
		return models.Playlist{}, err
	}
	playlist.VideoIDs = videoIDs
	return playlist, nil
}

func (r *postgresRepository) DeletePlaylist(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return mapPgError("delete playlist", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *postgresRepository) ListUserPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, owner_id, name, description, created_at, updated_at
        FROM playlists
        WHERE owner_id = $1
        ORDER BY created_at DESC, id
    `, ownerID)
	if err != nil {
		return nil, mapPgError("query playlists", err)
	}
	defer rows.Close()

	playlists := make([]models.Playlist, 0)
	index := make(map[string]int)
	for rows.Next() {
		var playlist models.Playlist
		if err := rows.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description,
			&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlist.VideoIDs = []string{}
		index[playlist.ID] = len(playlists)
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	if len(playlists) == 0 {
		return playlists, nil
	}

	refRows, err := r.pool.Query(ctx, `
        SELECT pv.playlist_id, pv.video_id
        FROM playlist_videos pv
        JOIN playlists p ON p.id = pv.playlist_id
        WHERE p.owner_id = $1
        ORDER BY pv.position
    `, ownerID)
	if err != nil {
		return nil, mapPgError("query playlist videos", err)
	}
	defer refRows.Close()

	for refRows.Next() {
		var playlistID, videoID string
		if err := refRows.Scan(&playlistID, &videoID); err != nil {
			return nil, fmt.Errorf("scan playlist video: %w", err)
		}
		if i, ok := index[playlistID]; ok {
			playlists[i].VideoIDs = append(playlists[i].VideoIDs, videoID)
		}
	}
	if err := refRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist videos: %w", err)
	}
	return playlists, nil
}

func (r *postgresRepository) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	var one int
	if err := r.pool.QueryRow(ctx, `SELECT 1 FROM playlists WHERE id = $1`, playlistID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
		}
		return models.Playlist{}, fmt.Errorf("check playlist: %w", err)
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO playlist_videos (playlist_id, video_id, position, added_at)
        VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = $1), $3)
        ON CONFLICT (playlist_id, video_id) DO NOTHING
    `, playlistID, videoID, time.Now().UTC())
	if err != nil {
		return models.Playlist{}, mapPgError("insert playlist video", err)
	}

	if _, err := r.pool.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, time.Now().UTC()); err != nil {
		return models.Playlist{}, mapPgError("touch playlist", err)
	}
	return r.GetPlaylist(ctx, playlistID)
}

func (r *postgresRepository) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	var one int
	if err := r.pool.QueryRow(ctx, `SELECT 1 FROM playlists WHERE id = $1`, playlistID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
		}
		return models.Playlist{}, fmt.Errorf("check playlist: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
        DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2
    `, playlistID, videoID)
	if err != nil {
		return models.Playlist{}, mapPgError("delete playlist video", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Playlist{}, fmt.Errorf("playlist %s video %s: %w", playlistID, videoID, ErrVideoNotInPlaylist)
	}

	if _, err := r.pool.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, time.Now().UTC()); err != nil {
		return models.Playlist{}, mapPgError("touch playlist", err)
	}
	return r.GetPlaylist(ctx, playlistID)
}

// Subscription operations

func (r *postgresRepository) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if err := r.userExists(ctx, channelID); err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, `
        DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID)
	if err != nil {
		return false, mapPgError("delete subscription", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, uuid.NewString(), subscriberID, channelID, time.Now().UTC())
	if err != nil {
		return false, mapPgError("insert subscription", err)
	}
	return true, nil
}

func (r *postgresRepository) ListChannelSubscribers(ctx context.Context, channelID string, page Page) ([]SubscriberEntry, int64, error) {
	if err := r.userExists(ctx, channelID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, channelID).Scan(&total); err != nil {
		return nil, 0, mapPgError("count subscribers", err)
	}

	query := `
        SELECT u.id, u.username, u.full_name, u.avatar_url, s.created_at
        FROM subscriptions s
        JOIN users u ON u.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC, s.id`
	args := []any{channelID}
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query subscribers", err)
	}
	defer rows.Close()

	items := make([]SubscriberEntry, 0, page.Size)
	for rows.Next() {
		var entry SubscriberEntry
		if err := rows.Scan(&entry.Subscriber.ID, &entry.Subscriber.Username,
			&entry.Subscriber.FullName, &entry.Subscriber.AvatarURL, &entry.SubscribedAt); err != nil {
			return nil, 0, fmt.Errorf("scan subscriber: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate subscribers: %w", err)
	}
	return items, total, nil
}

func (r *postgresRepository) ListSubscribedChannels(ctx context.Context, subscriberID string, page Page) ([]ChannelEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID).Scan(&total); err != nil {
		return nil, 0, mapPgError("count subscriptions", err)
	}

	query := `
        SELECT u.id, u.username, u.full_name, u.avatar_url, s.created_at
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC, s.id`
	args := []any{subscriberID}
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query subscriptions", err)
	}
	defer rows.Close()

	items := make([]ChannelEntry, 0, page.Size)
	for rows.Next() {
		var entry ChannelEntry
		if err := rows.Scan(&entry.Channel.ID, &entry.Channel.Username,
			&entry.Channel.FullName, &entry.Channel.AvatarURL, &entry.SubscribedAt); err != nil {
			return nil, 0, fmt.Errorf("scan subscription: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return items, total, nil
}

// Dashboard operations

func (r *postgresRepository) ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error) {
	if err := r.userExists(ctx, channelID); err != nil {
		return models.ChannelStats{}, err
	}

	stats := models.ChannelStats{ChannelID: channelID}
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(v.id),
               COALESCE(SUM(v.views), 0),
               (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1),
               (SELECT COUNT(*)
                FROM likes l
                JOIN videos lv ON lv.id = l.target_id
                WHERE l.target_kind = 'video' AND lv.owner_id = $1)
        FROM videos v
        WHERE v.owner_id = $1
    `, channelID).Scan(&stats.TotalVideos, &stats.TotalViews, &stats.TotalSubscribers, &stats.TotalLikes)
	if err != nil {
		return models.ChannelStats{}, mapPgError("aggregate channel stats", err)
	}
	return stats, nil
}

func (r *postgresRepository) ListChannelVideos(ctx context.Context, channelID string, includeUnpublished bool, page Page) ([]models.Video, int64, error) {
	if err := r.userExists(ctx, channelID); err != nil {
		return nil, 0, err
	}

	where := ` WHERE owner_id = $1`
	if !includeUnpublished {
		where += ` AND published`
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+where, channelID).Scan(&total); err != nil {
		return nil, 0, mapPgError("count channel videos", err)
	}

	query := `SELECT ` + videoColumns + ` FROM videos` + where + ` ORDER BY created_at DESC, id`
	args := []any{channelID}
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError("query channel videos", err)
	}
	defer rows.Close()

	videos := make([]models.Video, 0, page.Size)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan channel video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate channel videos: %w", err)
	}
	return videos, total, nil
}

var _ Repository = (*postgresRepository)(nil)

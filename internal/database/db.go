package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrFunctionUnavailable is returned when get_sounds_period is not installed
var ErrFunctionUnavailable = errors.New("ranking function unavailable")

// undefinedFunction is the postgres error code for a missing function
const undefinedFunction = "42883"

// DB wraps the database connection
type DB struct {
	*sqlx.DB
}

// Sound is the latest-state row for a (sound_id, region) pair
type Sound struct {
	SoundID         string    `db:"sound_id" json:"sound_id"`
	Region          string    `db:"region" json:"region"`
	Title           string    `db:"title" json:"title"`
	Author          string    `db:"author" json:"author"`
	CoverURL        *string   `db:"cover_url" json:"cover_url"`
	PreviewURL      *string   `db:"preview_url" json:"preview_url"`
	PlayURL         *string   `db:"play_url" json:"play_url"`
	Duration        *int      `db:"duration" json:"duration"`
	Rank            *int      `db:"rank" json:"rank"`
	VideoCount      *int64    `db:"video_count" json:"video_count"`
	UserCount       *int64    `db:"user_count" json:"user_count"`
	IsCommerceMusic *bool     `db:"is_commerce_music" json:"is_commerce_music"`
	Language        *string   `db:"language" json:"language"`
	CreateTime      *int64    `db:"create_time" json:"create_time"`
	TikTokURL       *string   `db:"tiktok_url" json:"tiktok_url"`
	SortType        *string   `db:"sort_type" json:"sort_type"`
	FetchedAt       time.Time `db:"fetched_at" json:"fetched_at"`
}

// SoundMetric is an immutable snapshot observation
type SoundMetric struct {
	ID           int64     `db:"id"`
	SoundID      string    `db:"sound_id"`
	Region       string    `db:"region"`
	FetchedAt    time.Time `db:"fetched_at"`
	Rank         *int      `db:"rank"`
	VideoCount   *int64    `db:"video_count"`
	Title        *string   `db:"title"`
	Author       *string   `db:"author"`
	PreviewURL   *string   `db:"preview_url"`
	CoverURL     *string   `db:"cover_url"`
	Duration     *int      `db:"duration"`
	IsCommercial *bool     `db:"is_commercial"`
}

// PeriodRow is one row returned by get_sounds_period
type PeriodRow struct {
	SoundID     string `db:"sound_id"`
	Region      string `db:"region"`
	Rank        *int   `db:"rank"`
	BestRank    *int   `db:"best_rank"`
	TotalVideos *int64 `db:"total_videos"`
}

// SoundPatch lists the latest-state columns a preview update may touch.
// Nil fields are left as they are.
type SoundPatch struct {
	PreviewURL      *string
	PlayURL         *string
	CoverURL        *string
	Duration        *int
	IsCommerceMusic *bool
	UserCount       *int64
}

// Empty reports whether the patch would change nothing
func (p SoundPatch) Empty() bool {
	return p.PreviewURL == nil && p.PlayURL == nil && p.CoverURL == nil &&
		p.Duration == nil && p.IsCommerceMusic == nil && p.UserCount == nil
}

// SnapshotOf builds the snapshot row matching a latest-state row
func SnapshotOf(s Sound) SoundMetric {
	title, author := s.Title, s.Author
	return SoundMetric{
		SoundID:      s.SoundID,
		Region:       s.Region,
		FetchedAt:    s.FetchedAt,
		Rank:         s.Rank,
		VideoCount:   s.VideoCount,
		Title:        &title,
		Author:       &author,
		PreviewURL:   s.PreviewURL,
		CoverURL:     s.CoverURL,
		Duration:     s.Duration,
		IsCommercial: s.IsCommerceMusic,
	}
}

// NewDB creates a new database connection
func NewDB(connectionString string) (*DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

const upsertSoundQuery = `
	INSERT INTO sounds_trending (
		sound_id, region, title, author, cover_url, preview_url, play_url, duration,
		rank, video_count, user_count, is_commerce_music, language, create_time,
		tiktok_url, sort_type, fetched_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (sound_id, region)
	DO UPDATE SET
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		cover_url = COALESCE(EXCLUDED.cover_url, sounds_trending.cover_url),
		preview_url = COALESCE(EXCLUDED.preview_url, sounds_trending.preview_url),
		play_url = COALESCE(EXCLUDED.play_url, sounds_trending.play_url),
		duration = COALESCE(EXCLUDED.duration, sounds_trending.duration),
		rank = EXCLUDED.rank,
		video_count = COALESCE(EXCLUDED.video_count, sounds_trending.video_count),
		user_count = COALESCE(EXCLUDED.user_count, sounds_trending.user_count),
		is_commerce_music = COALESCE(EXCLUDED.is_commerce_music, sounds_trending.is_commerce_music),
		language = COALESCE(EXCLUDED.language, sounds_trending.language),
		create_time = COALESCE(EXCLUDED.create_time, sounds_trending.create_time),
		tiktok_url = COALESCE(EXCLUDED.tiktok_url, sounds_trending.tiktok_url),
		sort_type = COALESCE(EXCLUDED.sort_type, sounds_trending.sort_type),
		fetched_at = EXCLUDED.fetched_at
`

const insertSnapshotQuery = `
	INSERT INTO sound_metrics (
		sound_id, region, fetched_at, rank, video_count, title, author,
		preview_url, cover_url, duration, is_commercial
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// SaveBatch upserts a normalized batch into sounds_trending and appends one
// snapshot per row to sound_metrics. Both writes commit together or not at all.
func (db *DB) SaveBatch(ctx context.Context, sounds []Sound) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sounds {
		if _, err := tx.ExecContext(ctx, upsertSoundQuery, soundArgs(s)...); err != nil {
			return fmt.Errorf("failed to upsert sound %s/%s: %w", s.SoundID, s.Region, err)
		}
	}

	for _, s := range sounds {
		if _, err := tx.ExecContext(ctx, insertSnapshotQuery, snapshotArgs(SnapshotOf(s))...); err != nil {
			return fmt.Errorf("failed to insert snapshot %s/%s: %w", s.SoundID, s.Region, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

const upsertPreviewQuery = `
	INSERT INTO sounds_trending (
		sound_id, region, title, author, cover_url, preview_url, play_url, duration,
		user_count, is_commerce_music, fetched_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (sound_id, region)
	DO UPDATE SET
		cover_url = COALESCE(EXCLUDED.cover_url, sounds_trending.cover_url),
		preview_url = EXCLUDED.preview_url,
		play_url = EXCLUDED.play_url,
		duration = COALESCE(EXCLUDED.duration, sounds_trending.duration),
		user_count = COALESCE(EXCLUDED.user_count, sounds_trending.user_count),
		is_commerce_music = COALESCE(EXCLUDED.is_commerce_music, sounds_trending.is_commerce_music),
		fetched_at = EXCLUDED.fetched_at
`

// UpsertPreview caches a resolved preview in sounds_trending. Rank and
// counters of an existing row are kept.
func (db *DB) UpsertPreview(ctx context.Context, s Sound) error {
	_, err := db.ExecContext(ctx, upsertPreviewQuery,
		s.SoundID, s.Region, s.Title, s.Author, s.CoverURL, s.PreviewURL, s.PlayURL, s.Duration,
		s.UserCount, s.IsCommerceMusic, s.FetchedAt,
	)
	return err
}

// InsertSnapshot appends one row to sound_metrics
func (db *DB) InsertSnapshot(ctx context.Context, m SoundMetric) error {
	_, err := db.ExecContext(ctx, insertSnapshotQuery, snapshotArgs(m)...)
	return err
}

// PatchSound updates the preview columns of an existing latest-state row.
// Returns the number of rows touched.
func (db *DB) PatchSound(ctx context.Context, soundID, region string, patch SoundPatch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}

	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PreviewURL != nil {
		add("preview_url", *patch.PreviewURL)
	}
	if patch.PlayURL != nil {
		add("play_url", *patch.PlayURL)
	}
	if patch.CoverURL != nil {
		add("cover_url", *patch.CoverURL)
	}
	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.IsCommerceMusic != nil {
		add("is_commerce_music", *patch.IsCommerceMusic)
	}
	if patch.UserCount != nil {
		add("user_count", *patch.UserCount)
	}

	args = append(args, soundID, region)
	query := fmt.Sprintf(
		`UPDATE sounds_trending SET %s WHERE sound_id = $%d AND region = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListSoundsByRegion returns latest-state rows for a region ordered by rank.
// A limit <= 0 returns every row.
func (db *DB) ListSoundsByRegion(ctx context.Context, region string, limit int) ([]Sound, error) {
	query := `SELECT * FROM sounds_trending WHERE region = $1 ORDER BY rank ASC NULLS LAST`
	args := []interface{}{region}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var sounds []Sound
	err := db.SelectContext(ctx, &sounds, query, args...)
	return sounds, err
}

// SoundsByIDs returns latest-state rows for the given ids in one region
func (db *DB) SoundsByIDs(ctx context.Context, region string, ids []string) ([]Sound, error) {
	query := `SELECT * FROM sounds_trending WHERE region = $1 AND sound_id = ANY($2)`

	var sounds []Sound
	err := db.SelectContext(ctx, &sounds, query, region, pq.Array(ids))
	return sounds, err
}

// SoundsByIDsAllRegions returns latest-state rows for the given ids across
// all regions, freshest first
func (db *DB) SoundsByIDsAllRegions(ctx context.Context, ids []string) ([]Sound, error) {
	query := `SELECT * FROM sounds_trending WHERE sound_id = ANY($1) ORDER BY fetched_at DESC`

	var sounds []Sound
	err := db.SelectContext(ctx, &sounds, query, pq.Array(ids))
	return sounds, err
}

// SnapshotsInWindow returns every snapshot observed in [start, end]
func (db *DB) SnapshotsInWindow(ctx context.Context, start, end time.Time) ([]SoundMetric, error) {
	query := `
		SELECT sound_id, region, rank, fetched_at
		FROM sound_metrics
		WHERE fetched_at >= $1 AND fetched_at <= $2
	`

	var metrics []SoundMetric
	err := db.SelectContext(ctx, &metrics, query, start, end)
	return metrics, err
}

// RecentSnapshots returns snapshots for the given ids since a cutoff, newest
// first. An empty region matches every region.
func (db *DB) RecentSnapshots(ctx context.Context, region string, ids []string, since time.Time) ([]SoundMetric, error) {
	query := `
		SELECT sound_id, region, rank, fetched_at
		FROM sound_metrics
		WHERE sound_id = ANY($1) AND fetched_at >= $2
	`
	args := []interface{}{pq.Array(ids), since}
	if region != "" {
		query += ` AND region = $3`
		args = append(args, region)
	}
	query += ` ORDER BY fetched_at DESC`

	var metrics []SoundMetric
	err := db.SelectContext(ctx, &metrics, query, args...)
	return metrics, err
}

// PeriodRanking invokes the get_sounds_period function
func (db *DB) PeriodRanking(ctx context.Context, region string, start, end time.Time, limit int) ([]PeriodRow, error) {
	query := `
		SELECT sound_id, region, rank, best_rank, total_videos
		FROM get_sounds_period($1, $2, $3, $4)
	`

	var rows []PeriodRow
	if err := db.SelectContext(ctx, &rows, query, region, start, end, limit); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedFunction {
			return nil, fmt.Errorf("%w: %s", ErrFunctionUnavailable, pqErr.Message)
		}
		return nil, err
	}
	return rows, nil
}

// DeleteStaleSounds removes latest-state rows not refreshed since cutoff.
// Snapshots are left untouched.
func (db *DB) DeleteStaleSounds(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM sounds_trending WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountStaleSounds counts the rows DeleteStaleSounds would remove
func (db *DB) CountStaleSounds(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sounds_trending WHERE fetched_at < $1`, cutoff); err != nil {
		return 0, err
	}
	return count, nil
}

func soundArgs(s Sound) []interface{} {
	return []interface{}{
		s.SoundID, s.Region, s.Title, s.Author, s.CoverURL, s.PreviewURL, s.PlayURL, s.Duration,
		s.Rank, s.VideoCount, s.UserCount, s.IsCommerceMusic, s.Language, s.CreateTime,
		s.TikTokURL, s.SortType, s.FetchedAt,
	}
}

func snapshotArgs(m SoundMetric) []interface{} {
	return []interface{}{
		m.SoundID, m.Region, m.FetchedAt, m.Rank, m.VideoCount, m.Title, m.Author,
		m.PreviewURL, m.CoverURL, m.Duration, m.IsCommercial,
	}
}

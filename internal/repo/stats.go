package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
)

// PostsStats returns the number of live posts and the newest CreatedAt, or
// (0, nil) when there are none.
func PostsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return latestOf(db.WithContext(ctx).Model(&domain.Post{}))
}

// CommentsStats returns the number of comments on postID and the newest
// CreatedAt among them. Comments are append-only so this pair changes
// whenever the listing does.
func CommentsStats(ctx context.Context, db *gorm.DB, postID string) (count int64, latest *time.Time, err error) {
	return latestOf(db.WithContext(ctx).Model(&domain.Comment{}).Where("post_id = ?", postID))
}

func latestOf(q *gorm.DB) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// ORDER BY instead of MAX(): SQLite returns MAX() of a datetime as TEXT.
	var row struct {
		CreatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// DayCount is the number of comments created on one UTC calendar day.
type DayCount struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Total   int64  `json:"total"`
	Blocked int64  `json:"blocked"`
}

// Breakdown summarizes comments created in a half-open interval.
type Breakdown struct {
	Total   int64      `json:"total_comments"`
	Blocked int64      `json:"blocked_comments"`
	Days    []DayCount `json:"days"`
}

// CommentBreakdown counts comments with from <= created_at < to, overall and
// per UTC day. Days without comments are omitted. Rows are streamed so memory
// stays constant regardless of the range.
func CommentBreakdown(ctx context.Context, db *gorm.DB, from, to time.Time) (Breakdown, error) {
	out := Breakdown{Days: []DayCount{}}
	rows, err := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Select("created_at, is_blocked").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Rows()
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			at      time.Time
			blocked bool
		)
		if err := rows.Scan(&at, &blocked); err != nil {
			return out, err
		}
		day := at.UTC().Format(time.DateOnly)
		if n := len(out.Days); n == 0 || out.Days[n-1].Date != day {
			out.Days = append(out.Days, DayCount{Date: day})
		}
		cur := &out.Days[len(out.Days)-1]
		cur.Total++
		out.Total++
		if blocked {
			cur.Blocked++
			out.Blocked++
		}
	}
	return out, rows.Err()
}

package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/stats"
)

// topTargetsLimit bounds Summary.TopTargets.
const topTargetsLimit = 10

// Counts of reports by status.
type Counts struct {
	Pending   int64 `json:"pending"`
	Resolved  int64 `json:"resolved"`
	Dismissed int64 `json:"dismissed"`
	Total     int64 `json:"total"`
}

func (c *Counts) add(status string, n int64) {
	switch status {
	case database.ReportPending:
		c.Pending += n
	case database.ReportResolved:
		c.Resolved += n
	case database.ReportDismissed:
		c.Dismissed += n
	}
	c.Total += n
}

// TypeSummary counts one report type.
type TypeSummary struct {
	Type string `json:"type"`
	Counts
	New stats.Trend `json:"new"`
}

// ReasonCount is the number of reports filed for one reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// AppealSummary counts appeals by status.
type AppealSummary struct {
	Pending  int64       `json:"pending"`
	Approved int64       `json:"approved"`
	Rejected int64       `json:"rejected"`
	New      stats.Trend `json:"new"`
	// ApprovalRate is the percentage of decided appeals that were approved.
	ApprovalRate *float64 `json:"approval_rate"`
}

// TargetCount is a frequently reported target.
type TargetCount struct {
	Type     string `json:"type"`
	TargetID uint   `json:"target_id"`
	Count    int64  `json:"count"`
}

// Summary is the moderation report.
type Summary struct {
	Window             stats.Window       `json:"window"`
	Totals             Counts             `json:"totals"`
	ByType             []TypeSummary      `json:"by_type"`
	ByReason           []ReasonCount      `json:"by_reason"`
	NewReports         stats.Trend        `json:"new_reports"`
	ResolvedReports    stats.Trend        `json:"resolved_reports"`
	AvgResolutionHours *float64           `json:"avg_resolution_hours"`
	Appeals            AppealSummary      `json:"appeals"`
	TopTargets         []TargetCount      `json:"top_targets"`
	DailyNew           []stats.DailyCount `json:"daily_new"`
}

// windowCounts is the per-type result of a current/previous window query.
type windowCounts struct {
	ReportType string
	Cur        int64
	Prev       int64
}

// windowSQL counts rows of table whose column falls into the current and the
// previous window. extra is ANDed to both conditions.
func windowSQL(label, table, column, extra string, w stats.Window) (string, []interface{}) {
	cond := column + " >= ? AND " + column + " < ?"
	if extra != "" {
		cond += " AND " + extra
	}
	q := fmt.Sprintf(
		"SELECT '%s' AS report_type, "+
			"COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS cur, "+
			"COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS prev "+
			"FROM %s",
		label, cond, cond, table)
	return q, []interface{}{w.Start, w.End, w.PrevStart, w.Start}
}

func (s *moderationService) windowCounts(ctx context.Context, column, extra string, w stats.Window) (map[string]stats.Trend, error) {
	branches := make([]string, 0, len(database.ReportTypes))
	var args []interface{}
	for _, t := range database.ReportTypes {
		q, a := windowSQL(t, database.ReportTables[t].Table, column, extra, w)
		branches = append(branches, q)
		args = append(args, a...)
	}
	var rows []windowCounts
	if err := s.db.WithContext(ctx).Raw(strings.Join(branches, " UNION ALL "), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]stats.Trend, len(rows))
	var cur, prev int64
	for _, r := range rows {
		out[r.ReportType] = stats.NewTrend(r.Cur, r.Prev)
		cur += r.Cur
		prev += r.Prev
	}
	out[""] = stats.NewTrend(cur, prev)
	return out, nil
}

func (s *moderationService) Summary(ctx context.Context, days int) (*Summary, error) {
	w := stats.NewWindow(s.now(), days)
	db := s.db.WithContext(ctx)
	sum := &Summary{Window: w}

	// Status counts per type.
	var branches []string
	for _, t := range database.ReportTypes {
		branches = append(branches, fmt.Sprintf(
			"SELECT '%s' AS report_type, status, COUNT(*) AS n FROM %s GROUP BY status",
			t, database.ReportTables[t].Table))
	}
	var statusRows []struct {
		ReportType string
		Status     string
		N          int64
	}
	if err := db.Raw(strings.Join(branches, " UNION ALL ")).Scan(&statusRows).Error; err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	byType := make(map[string]*TypeSummary, len(database.ReportTypes))
	for _, t := range database.ReportTypes {
		byType[t] = &TypeSummary{Type: t}
	}
	for _, r := range statusRows {
		if ts, ok := byType[r.ReportType]; ok {
			ts.add(r.Status, r.N)
		}
		sum.Totals.add(r.Status, r.N)
	}

	created, err := s.windowCounts(ctx, "created_at", "", w)
	if err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	resolved, err := s.windowCounts(ctx, "reviewed_at", "status = '"+database.ReportResolved+"'", w)
	if err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	sum.NewReports = created[""]
	sum.ResolvedReports = resolved[""]
	for _, t := range database.ReportTypes {
		ts := byType[t]
		ts.New = created[t]
		sum.ByType = append(sum.ByType, *ts)
	}

	if sum.ByReason, err = s.byReason(ctx, w); err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	if sum.TopTargets, err = s.topTargets(ctx); err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	if sum.AvgResolutionHours, err = s.avgResolution(ctx, w); err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	if sum.Appeals, err = s.appealSummary(ctx, w); err != nil {
		return nil, apperrors.FromDB(err, "appeal")
	}

	var times []time.Time
	for _, t := range database.ReportTypes {
		var batch []time.Time
		err := db.Table(database.ReportTables[t].Table).
			Where("created_at >= ? AND created_at < ?", w.Start, w.End).
			Pluck("created_at", &batch).Error
		if err != nil {
			return nil, apperrors.FromDB(err, "report")
		}
		times = append(times, batch...)
	}
	sum.DailyNew = stats.Daily(w, times)
	return sum, nil
}

func (s *moderationService) byReason(ctx context.Context, w stats.Window) ([]ReasonCount, error) {
	var branches []string
	var args []interface{}
	for _, t := range database.ReportTypes {
		branches = append(branches, fmt.Sprintf(
			"SELECT reason FROM %s WHERE created_at >= ? AND created_at < ?", database.ReportTables[t].Table))
		args = append(args, w.Start, w.End)
	}
	q := "SELECT reason, COUNT(*) AS count FROM (" + strings.Join(branches, " UNION ALL ") + ") AS r " +
		"GROUP BY reason ORDER BY count DESC, reason"
	out := []ReasonCount{}
	err := s.db.WithContext(ctx).Raw(q, args...).Scan(&out).Error
	return out, err
}

func (s *moderationService) topTargets(ctx context.Context) ([]TargetCount, error) {
	var branches []string
	for _, t := range database.ReportTypes {
		spec := database.ReportTables[t]
		branches = append(branches, fmt.Sprintf(
			"SELECT '%s' AS type, %s AS target_id FROM %s", t, spec.TargetColumn, spec.Table))
	}
	q := "SELECT type, target_id, COUNT(*) AS count FROM (" + strings.Join(branches, " UNION ALL ") + ") AS r " +
		"GROUP BY type, target_id ORDER BY count DESC, type, target_id LIMIT ?"
	out := []TargetCount{}
	err := s.db.WithContext(ctx).Raw(q, topTargetsLimit).Scan(&out).Error
	return out, err
}

// avgResolution averages created→reviewed time of reports reviewed in the
// current window. Nil when none were.
func (s *moderationService) avgResolution(ctx context.Context, w stats.Window) (*float64, error) {
	var total time.Duration
	var n int64
	for _, t := range database.ReportTypes {
		var rows []struct {
			CreatedAt  time.Time
			ReviewedAt time.Time
		}
		err := s.db.WithContext(ctx).Table(database.ReportTables[t].Table).
			Select("created_at", "reviewed_at").
			Where("reviewed_at >= ? AND reviewed_at < ?", w.Start, w.End).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			total += r.ReviewedAt.Sub(r.CreatedAt)
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	hours := stats.Round1(total.Hours() / float64(n))
	return &hours, nil
}

func (s *moderationService) appealSummary(ctx context.Context, w stats.Window) (AppealSummary, error) {
	var out AppealSummary
	db := s.db.WithContext(ctx)

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.Model(&database.Appeal{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, r := range rows {
		switch r.Status {
		case database.AppealPending:
			out.Pending = r.N
		case database.AppealApproved:
			out.Approved = r.N
		case database.AppealRejected:
			out.Rejected = r.N
		}
	}

	q, args := windowSQL("appeal", "appeals", "created_at", "", w)
	var wc windowCounts
	if err := db.Raw(q, args...).Scan(&wc).Error; err != nil {
		return out, err
	}
	out.New = stats.NewTrend(wc.Cur, wc.Prev)

	if decided := out.Approved + out.Rejected; decided > 0 {
		rate := stats.Round1(float64(out.Approved) / float64(decided) * 100)
		out.ApprovalRate = &rate
	}
	return out, nil
}


package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// InsertCalendarAccount writes an account only when its id is not already present.
func (q *Queries) InsertCalendarAccount(a *types.CalendarAccount) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO calendar_accounts (id, provider, email) VALUES (?, ?, ?)`,
		a.ID, a.Provider, a.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert calendar account %s: %w", a.ID, err)
	}
	return Inserted, nil
}

// ListCalendarAccounts returns all connected calendar accounts.
func (q *Queries) ListCalendarAccounts() ([]*types.CalendarAccount, error) {
	rows, err := q.tx.Query(`
		SELECT id, provider, email FROM calendar_accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*types.CalendarAccount
	for rows.Next() {
		var a types.CalendarAccount
		if err := rows.Scan(&a.ID, &a.Provider, &a.Email); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// InsertCalendarEvent writes an event only when its id is not already present.
func (q *Queries) InsertCalendarEvent(e *types.CalendarEvent) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO calendar_events (id, account_id, series_id, title, starts_at, ends_at, ignored)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.SeriesID, e.Title,
		encodeTime(e.StartsAt), encodeTime(e.EndsAt), boolToInt(e.Ignored))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert calendar event %s: %w", e.ID, err)
	}
	return Inserted, nil
}

// ListCalendarEvents returns all mirrored calendar events ordered by start time.
func (q *Queries) ListCalendarEvents() ([]*types.CalendarEvent, error) {
	rows, err := q.tx.Query(`
		SELECT id, account_id, series_id, title, starts_at, ends_at, ignored
		FROM calendar_events ORDER BY starts_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []*types.CalendarEvent
	for rows.Next() {
		var e types.CalendarEvent
		var seriesID sql.NullString
		var startsAt, endsAt string
		var ignored int
		if err := rows.Scan(&e.ID, &e.AccountID, &seriesID, &e.Title, &startsAt, &endsAt, &ignored); err != nil {
			return nil, err
		}
		e.SeriesID = seriesID.String
		e.Ignored = ignored != 0
		var err error
		if e.StartsAt, err = decodeTime(startsAt); err != nil {
			return nil, err
		}
		if e.EndsAt, err = decodeTime(endsAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// InsertCalendarSeriesContextRule writes a series→context rule; a duplicate
// pair is a no-op.
func (q *Queries) InsertCalendarSeriesContextRule(r *types.CalendarSeriesContextRule) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO calendar_series_context_rules (series_id, context_id)
		VALUES (?, ?)`,
		r.SeriesID, r.ContextID)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert series context rule %s/%s: %w", r.SeriesID, r.ContextID, err)
	}
	return Inserted, nil
}

// ListCalendarSeriesContextRules returns all series→context rules.
func (q *Queries) ListCalendarSeriesContextRules() ([]*types.CalendarSeriesContextRule, error) {
	rows, err := q.tx.Query(`
		SELECT series_id, context_id FROM calendar_series_context_rules
		ORDER BY series_id, context_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series context rules: %w", err)
	}
	defer rows.Close()

	var rules []*types.CalendarSeriesContextRule
	for rows.Next() {
		var r types.CalendarSeriesContextRule
		if err := rows.Scan(&r.SeriesID, &r.ContextID); err != nil {
			return nil, err
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// InsertContext writes a context only when its id is not already present.
func (q *Queries) InsertContext(c *types.Context) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO contexts (id, name, type, pinned, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), boolToInt(c.Pinned), boolToInt(c.Archived),
		encodeTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert context %s: %w", c.ID, err)
	}
	return Inserted, nil
}

// GetContext returns the context with the given id, or nil when absent.
func (q *Queries) GetContext(id string) (*types.Context, error) {
	row := q.tx.QueryRow(`
		SELECT id, name, type, pinned, archived, created_at
		FROM contexts WHERE id = ?`, id)
	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindContextByName returns the context with exactly the given name, or nil.
// The match is case-sensitive.
func (q *Queries) FindContextByName(name string) (*types.Context, error) {
	row := q.tx.QueryRow(`
		SELECT id, name, type, pinned, archived, created_at
		FROM contexts WHERE name = ? LIMIT 1`, name)
	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListContexts returns all contexts ordered by name.
func (q *Queries) ListContexts() ([]*types.Context, error) {
	rows, err := q.tx.Query(`
		SELECT id, name, type, pinned, archived, created_at
		FROM contexts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()
	return collectContexts(rows)
}

func collectContexts(rows *sql.Rows) ([]*types.Context, error) {
	var contexts []*types.Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

func scanContext(row rowScanner) (*types.Context, error) {
	var c types.Context
	var typ, createdAt string
	var pinned, archived int
	if err := row.Scan(&c.ID, &c.Name, &typ, &pinned, &archived, &createdAt); err != nil {
		return nil, err
	}
	c.Type = types.ContextType(typ)
	c.Pinned = pinned != 0
	c.Archived = archived != 0
	var err error
	if c.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertContextLink inserts a parent→child edge; a duplicate pair is a no-op.
func (q *Queries) InsertContextLink(l *types.ContextLink) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO context_links (parent_id, child_id) VALUES (?, ?)`,
		l.ParentID, l.ChildID)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert context link %s -> %s: %w", l.ParentID, l.ChildID, err)
	}
	return Inserted, nil
}

// ListContextLinks returns all parent→child context edges.
func (q *Queries) ListContextLinks() ([]*types.ContextLink, error) {
	rows, err := q.tx.Query(`
		SELECT parent_id, child_id FROM context_links
		ORDER BY parent_id, child_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list context links: %w", err)
	}
	defer rows.Close()

	var links []*types.ContextLink
	for rows.Next() {
		var l types.ContextLink
		if err := rows.Scan(&l.ParentID, &l.ChildID); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

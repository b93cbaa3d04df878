package storage

// Counts is a snapshot of row counts per entity table, taken inside one
// transaction so the numbers are mutually consistent. Bundle export uses it
// to fill the manifest; import uses it to verify the manifest.
type Counts struct {
	Notes            int
	Contexts         int
	ContextLinks     int
	NoteLinks        int
	Meetings         int
	ScreenContexts   int
	Attachments      int
	CalendarAccounts int
	CalendarEvents   int
}

// CountAll counts rows in every table the bundle manifest reports.
func (q *Queries) CountAll() (*Counts, error) {
	c := &Counts{}
	for table, dst := range map[string]*int{
		"notes":             &c.Notes,
		"contexts":          &c.Contexts,
		"context_links":     &c.ContextLinks,
		"note_links":        &c.NoteLinks,
		"meetings":          &c.Meetings,
		"screen_contexts":   &c.ScreenContexts,
		"attachments":       &c.Attachments,
		"calendar_accounts": &c.CalendarAccounts,
		"calendar_events":   &c.CalendarEvents,
	} {
		n, err := q.countRows(table)
		if err != nil {
			return nil, err
		}
		*dst = n
	}
	return c, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// InsertPerson records a test-taker. Persons are created at result import and
// only read afterwards.
func (s *Store) InsertPerson(ctx context.Context, p Person) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("person id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO persons (id, workspace_id, group_name, login, code, consider)
         VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.GroupName, p.Login, p.Code, boolToInt(p.Consider),
	)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// PersonsByIDs returns the workspace's persons matching the given ids,
// preserving store order.
func (s *Store) PersonsByIDs(ctx context.Context, workspaceID int64, ids []string) ([]Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT id, workspace_id, group_name, login, code, consider
        FROM persons WHERE workspace_id = ? AND id IN (` + makePlaceholders(len(ids)) + `) ORDER BY id`
	return s.queryPersons(ctx, query, args...)
}

// PersonsByGroups returns every considered person of the workspace whose
// group is in the given set.
func (s *Store) PersonsByGroups(ctx context.Context, workspaceID int64, groups []string) ([]Person, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(groups)+1)
	args = append(args, workspaceID)
	for _, group := range groups {
		args = append(args, group)
	}
	query := `SELECT id, workspace_id, group_name, login, code, consider
        FROM persons WHERE workspace_id = ? AND consider = 1
        AND group_name IN (` + makePlaceholders(len(groups)) + `) ORDER BY id`
	return s.queryPersons(ctx, query, args...)
}

func (s *Store) queryPersons(ctx context.Context, query string, args ...any) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		var p Person
		var consider int
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.GroupName, &p.Login, &p.Code, &consider); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.Consider = consider != 0
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// InsertBooklet assigns a booklet to a person and returns its id.
func (s *Store) InsertBooklet(ctx context.Context, personID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO booklets (person_id) VALUES (?)`, personID)
	if err != nil {
		return 0, fmt.Errorf("insert booklet: %w", err)
	}
	return res.LastInsertId()
}

// BookletsByPersons returns the booklets belonging to the given persons.
func (s *Store) BookletsByPersons(ctx context.Context, personIDs []string) ([]Booklet, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(personIDs))
	for i, id := range personIDs {
		args[i] = id
	}
	query := `SELECT id, person_id FROM booklets
        WHERE person_id IN (` + makePlaceholders(len(personIDs)) + `) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query booklets: %w", err)
	}
	defer rows.Close()

	var booklets []Booklet
	for rows.Next() {
		var b Booklet
		if err := rows.Scan(&b.ID, &b.PersonID); err != nil {
			return nil, fmt.Errorf("scan booklet: %w", err)
		}
		booklets = append(booklets, b)
	}
	return booklets, rows.Err()
}

// InsertUnit records one task instance inside a booklet and returns its id.
func (s *Store) InsertUnit(ctx context.Context, bookletID int64, name, alias string) (int64, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, errors.New("unit name is required")
	}
	alias = strings.ToUpper(strings.TrimSpace(alias))
	if alias == "" {
		alias = name
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO units (booklet_id, name, alias) VALUES (?, ?, ?)`,
		bookletID, name, alias,
	)
	if err != nil {
		return 0, fmt.Errorf("insert unit: %w", err)
	}
	return res.LastInsertId()
}

// UnitsByBooklets returns the units contained in the given booklets.
func (s *Store) UnitsByBooklets(ctx context.Context, bookletIDs []int64) ([]Unit, error) {
	if len(bookletIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(bookletIDs))
	for i, id := range bookletIDs {
		args[i] = id
	}
	query := `SELECT id, booklet_id, name, alias FROM units
        WHERE booklet_id IN (` + makePlaceholders(len(bookletIDs)) + `) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.BookletID, &u.Name, &u.Alias); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/postgres"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// PostgresStore reads the directory tables. Phone search runs against
// phone_numbers.number_reversed (suffix match as a reversed prefix on a
// text_pattern_ops index); name search uses the pg_trgm indexes on people.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutFamily(ctx context.Context, f models.Family) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO families (id, name, campus_id) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, campus_id = EXCLUDED.campus_id`,
		uuid.UUID(f.ID), f.Name, postgres.NullUUID(uuid.UUID(f.CampusID)))
	if err != nil {
		return fmt.Errorf("put family: %w", err)
	}
	return nil
}

// PutPerson upserts p and replaces its phone numbers.
func (s *PostgresStore) PutPerson(ctx context.Context, p models.Person) error {
	exec := tx.Exec(ctx, s.db)
	_, err := exec.ExecContext(ctx,
		`INSERT INTO people (id, family_id, first_name, last_name, nick_name, email, alert_note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET family_id = EXCLUDED.family_id, first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name, nick_name = EXCLUDED.nick_name, email = EXCLUDED.email,
		   alert_note = EXCLUDED.alert_note`,
		uuid.UUID(p.ID), postgres.NullUUID(uuid.UUID(p.FamilyID)), p.FirstName, p.LastName,
		p.NickName, p.Email, p.AlertNote)
	if err != nil {
		return fmt.Errorf("put person: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM phone_numbers WHERE person_id = $1`, uuid.UUID(p.ID)); err != nil {
		return fmt.Errorf("clear phones: %w", err)
	}
	for _, number := range p.Phones {
		digits := models.NormalizePhone(number)
		_, err := exec.ExecContext(ctx,
			`INSERT INTO phone_numbers (person_id, number, number_normalized, number_reversed) VALUES ($1, $2, $3, $4)`,
			uuid.UUID(p.ID), number, digits, models.ReverseDigits(digits))
		if err != nil {
			return fmt.Errorf("put phone: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) PutGroup(ctx context.Context, g models.Group) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO groups (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		uuid.UUID(g.ID), g.Name)
	if err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutLocation(ctx context.Context, l models.Location) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO locations (id, name, campus_id) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, campus_id = EXCLUDED.campus_id`,
		uuid.UUID(l.ID), l.Name, postgres.NullUUID(uuid.UUID(l.CampusID)))
	if err != nil {
		return fmt.Errorf("put location: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutSchedule(ctx context.Context, sc models.Schedule) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO schedules (id, name, weekday, start_time) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, weekday = EXCLUDED.weekday, start_time = EXCLUDED.start_time`,
		uuid.UUID(sc.ID), sc.Name, int(sc.Weekday), sc.StartTime)
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutMembership(ctx context.Context, personID id.PersonID, groupID id.GroupID) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO group_memberships (person_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		uuid.UUID(personID), uuid.UUID(groupID))
	if err != nil {
		return fmt.Errorf("put membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutOffering(ctx context.Context, o models.GroupOffering) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO group_offerings (group_id, location_id, schedule_ids) VALUES ($1, $2, $3::uuid[])
		 ON CONFLICT (group_id, location_id) DO UPDATE SET schedule_ids = EXCLUDED.schedule_ids`,
		uuid.UUID(o.GroupID), uuid.UUID(o.LocationID), pq.Array(uuidStrings(o.ScheduleIDs)))
	if err != nil {
		return fmt.Errorf("put offering: %w", err)
	}
	return nil
}

func (s *PostgresStore) Family(ctx context.Context, familyID id.FamilyID) (*models.FamilyResult, error) {
	results, err := s.familiesWhere(ctx, `f.id = $1`, 1, uuid.UUID(familyID))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	return &results[0], nil
}

// Snapshot returns every family with its members, ordered by family name.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]models.FamilyResult, error) {
	return s.familiesWhere(ctx, `TRUE`, 0)
}

// SearchPhone returns families with a member whose normalized number ends
// with digits.
func (s *PostgresStore) SearchPhone(ctx context.Context, digits string, limit int) ([]models.FamilyResult, error) {
	pattern := escapeLike(models.ReverseDigits(digits)) + "%"
	return s.familiesWhere(ctx, `f.id IN (
		SELECT p.family_id FROM phone_numbers pn JOIN people p ON p.id = pn.person_id
		WHERE pn.number_reversed LIKE $1)`, limit, pattern)
}

// SearchName returns families with a member for whom every term prefixes a
// word of first, last or nick name, or the email. Word starts follow the
// in-memory index, so "buren" finds "Van Buren".
func (s *PostgresStore) SearchName(ctx context.Context, terms []string, limit int) ([]models.FamilyResult, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms))
	for i, term := range terms {
		p := "$" + strconv.Itoa(i+1)
		clauses = append(clauses, fmt.Sprintf(
			`(%[2]s OR %[3]s OR %[4]s OR lower(p.email) LIKE %[1]s)`, p,
			wordPrefix("p.first_name", p), wordPrefix("p.last_name", p), wordPrefix("p.nick_name", p)))
		args = append(args, escapeLike(strings.ToLower(term))+"%")
	}
	where := `f.id IN (SELECT p.family_id FROM people p WHERE ` + strings.Join(clauses, " AND ") + `)`
	return s.familiesWhere(ctx, where, limit, args...)
}

// wordPrefix matches pattern at the start of column or after a space in it.
func wordPrefix(column, pattern string) string {
	return fmt.Sprintf(`(lower(%[1]s) LIKE %[2]s OR lower(%[1]s) LIKE '%% ' || %[2]s)`, column, pattern)
}

func (s *PostgresStore) familiesWhere(ctx context.Context, where string, limit int, args ...any) ([]models.FamilyResult, error) {
	exec := tx.Exec(ctx, s.db)
	query := fmt.Sprintf(`SELECT f.id, f.name, f.campus_id FROM families f WHERE %s ORDER BY f.name, f.id`, where)
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query families: %w", err)
	}
	defer rows.Close()

	var (
		results []models.FamilyResult
		ids     []string
	)
	for rows.Next() {
		var (
			familyID uuid.UUID
			campusID uuid.NullUUID
			f        models.Family
		)
		if err := rows.Scan(&familyID, &f.Name, &campusID); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		f.ID = id.FamilyID(familyID)
		f.CampusID = id.CampusID(campusID.UUID)
		results = append(results, models.FamilyResult{Family: f})
		ids = append(ids, familyID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	members, err := s.members(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Members = members[results[i].Family.ID]
	}
	return results, nil
}

const personColumns = `p.id, p.family_id, p.first_name, p.last_name, p.nick_name, p.email, p.alert_note,
	COALESCE((SELECT array_agg(pn.number ORDER BY pn.id) FROM phone_numbers pn WHERE pn.person_id = p.id), '{}')`

func (s *PostgresStore) members(ctx context.Context, exec tx.Executor, familyIDs []string) (map[id.FamilyID][]models.Person, error) {
	rows, err := exec.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people p WHERE p.family_id = ANY($1::uuid[])
		 ORDER BY p.last_name, p.first_name, p.id`, pq.Array(familyIDs))
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	out := make(map[id.FamilyID][]models.Person)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out[p.FamilyID] = append(out[p.FamilyID], *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Person(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people p WHERE p.id = $1`, uuid.UUID(personID))
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p        models.Person
		personID uuid.UUID
		familyID uuid.NullUUID
		phones   []string
	)
	err := row.Scan(&personID, &familyID, &p.FirstName, &p.LastName, &p.NickName, &p.Email, &p.AlertNote, pq.Array(&phones))
	if err != nil {
		return nil, err
	}
	p.ID = id.PersonID(personID)
	p.FamilyID = id.FamilyID(familyID.UUID)
	p.Phones = phones
	return &p, nil
}

func (s *PostgresStore) Group(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	var g models.Group
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT name FROM groups WHERE id = $1`, uuid.UUID(groupID)).Scan(&g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find group: %w", err)
	}
	g.ID = groupID
	return &g, nil
}

func (s *PostgresStore) Location(ctx context.Context, locationID id.LocationID) (*models.Location, error) {
	var (
		l        models.Location
		campusID uuid.NullUUID
	)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT name, campus_id FROM locations WHERE id = $1`, uuid.UUID(locationID)).Scan(&l.Name, &campusID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find location: %w", err)
	}
	l.ID = locationID
	l.CampusID = id.CampusID(campusID.UUID)
	return &l, nil
}

func (s *PostgresStore) Schedule(ctx context.Context, scheduleID id.ScheduleID) (*models.Schedule, error) {
	var (
		sc      models.Schedule
		weekday int
	)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT name, weekday, start_time FROM schedules WHERE id = $1`, uuid.UUID(scheduleID)).
		Scan(&sc.Name, &weekday, &sc.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	sc.ID = scheduleID
	sc.Weekday = time.Weekday(weekday)
	return &sc, nil
}

func (s *PostgresStore) GroupsForPerson(ctx context.Context, personID id.PersonID) ([]id.GroupID, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT group_id FROM group_memberships WHERE person_id = $1 ORDER BY group_id`, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []id.GroupID
	for rows.Next() {
		var groupID uuid.UUID
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, id.GroupID(groupID))
	}
	return out, rows.Err()
}

func (s *PostgresStore) OfferingsForGroup(ctx context.Context, groupID id.GroupID) ([]models.GroupOffering, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT location_id, schedule_ids FROM group_offerings WHERE group_id = $1 ORDER BY location_id`,
		uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("query offerings: %w", err)
	}
	defer rows.Close()

	var out []models.GroupOffering
	for rows.Next() {
		var (
			locationID uuid.UUID
			schedules  []string
		)
		if err := rows.Scan(&locationID, pq.Array(&schedules)); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		o := models.GroupOffering{GroupID: groupID, LocationID: id.LocationID(locationID)}
		for _, raw := range schedules {
			u, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parse schedule id %q: %w", raw, err)
			}
			o.ScheduleIDs = append(o.ScheduleIDs, id.ScheduleID(u))
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func uuidStrings[T ~[16]byte](ids []T) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = uuid.UUID(v).String()
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

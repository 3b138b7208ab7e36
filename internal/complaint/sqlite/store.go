// Package sqlite is the default complaint store, a single SQLite file with
// embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/complaint"
	errx "github.com/aegis-safety/intake/internal/core/error"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ================ Complaints ================
const complaintColumns = `id,title,description,status,date_filed,session_id,name,phone,location,incident_date,transcript,turn_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row scanner) (*complaint.Record, error) {
	var (
		r          complaint.Record
		dateFiled  string
		transcript string
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &dateFiled, &r.SessionID,
		&r.Name, &r.Phone, &r.Location, &r.IncidentDate, &transcript, &r.TurnCount)
	if err != nil {
		return nil, err
	}
	r.DateFiled = parseTime(dateFiled)
	if transcript != "" {
		if err := json.Unmarshal([]byte(transcript), &r.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript of %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func (s *Store) CreateComplaint(ctx context.Context, in complaint.NewComplaint) (*complaint.Record, error) {
	transcript := in.Transcript
	if transcript == nil {
		transcript = []model.TranscriptEntry{}
	}
	raw, err := json.Marshal(transcript)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	rec := &complaint.Record{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Status:       complaint.Raised.Label,
		DateFiled:    s.now().UTC(),
		SessionID:    in.SessionID,
		Name:         in.Name,
		Phone:        in.Phone,
		Location:     in.Location,
		IncidentDate: in.IncidentDate,
		Transcript:   transcript,
		TurnCount:    len(transcript),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO complaints(`+complaintColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Title, rec.Description, rec.Status, formatTime(rec.DateFiled), rec.SessionID,
		rec.Name, rec.Phone, rec.Location, rec.IncidentDate, string(raw), rec.TurnCount)
	if err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	return rec, nil
}

func (s *Store) ListComplaints(ctx context.Context) ([]complaint.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+complaintColumns+` FROM complaints ORDER BY date_filed DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	res := []complaint.Record{}
	for rows.Next() {
		r, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func (s *Store) GetComplaint(ctx context.Context, id string) (*complaint.Record, error) {
	r, err := scanComplaint(s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, errx.NotFound("complaint")
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateComplaintStatus(ctx context.Context, id, status string) (*complaint.Record, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE complaints SET status=? WHERE id=?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update complaint status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errx.NotFound("complaint")
	}
	return s.GetComplaint(ctx, id)
}

// ================ Contacts ================
func (s *Store) AddContact(ctx context.Context, c complaint.Contact) (*complaint.Contact, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts(id,name,mobile,is_emergency,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.Name, c.Mobile, c.IsEmergency, formatTime(c.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateContactBatch(ctx context.Context, contacts []complaint.Contact) (*complaint.ContactBatch, error) {
	batch := &complaint.ContactBatch{
		ID:        uuid.NewString(),
		Contacts:  make([]complaint.Contact, 0, len(contacts)),
		CreatedAt: s.now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO contact_batches(id,created_at) VALUES (?,?)`,
		batch.ID, formatTime(batch.CreatedAt)); err != nil {
		return nil, fmt.Errorf("insert contact batch: %w", err)
	}
	for i, c := range contacts {
		c.ID = fmt.Sprintf("%s-%d", batch.ID, i)
		c.IsEmergency = true
		c.CreatedAt = batch.CreatedAt
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contacts(id,name,mobile,is_emergency,created_at,batch_id,position) VALUES (?,?,?,?,?,?,?)`,
			c.ID, c.Name, c.Mobile, c.IsEmergency, formatTime(c.CreatedAt), batch.ID, i); err != nil {
			return nil, fmt.Errorf("insert batch contact: %w", err)
		}
		batch.Contacts = append(batch.Contacts, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Store) ListContacts(ctx context.Context) ([]complaint.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,mobile,is_emergency,created_at FROM contacts ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	res := []complaint.Contact{}
	for rows.Next() {
		var (
			c         complaint.Contact
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Mobile, &c.IsEmergency, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		res = append(res, c)
	}
	return res, rows.Err()
}

var _ complaint.Store = (*Store)(nil)

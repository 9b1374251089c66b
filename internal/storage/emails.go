package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"poflow/internal"
)

var ErrEmailNotFound = errors.New("email not found")

const emailColumns = `id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(receivedAt, ''), hash, status, rawRef`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(r rowScanner) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := r.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

// UpsertEmail records a fetched message. A message seen before keeps its
// processing status; only its headers and raw reference are refreshed.
func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
RETURNING `+emailColumns,
		provider, messageID, subject, sender, receivedAt, hash, status, rawRef))
	if err != nil {
		return internal.EmailRow{}, fmt.Errorf("upsert email %s/%s: %w", provider, messageID, err)
	}
	return row, nil
}

// GetEmailByProviderMessageID returns nil when the message is unknown.
func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("%w: provider=%s messageId=%s", ErrEmailNotFound, provider, messageID)
	}
	return *row, nil
}

// ListEmailsByStatus returns the oldest emails in status first. A limit of
// zero or less means no limit.
func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt, id LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	res, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id=%d", ErrEmailNotFound, emailID)
	}
	return nil
}

// InsertRun records one processing run. orderID is empty when no order was
// created.
func (d *DB) InsertRun(traceID string, emailID int, orderID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return err
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	var order sql.NullString
	if orderID != "" {
		order = sql.NullString{String: orderID, Valid: true}
	}
	_, err = d.conn.Exec(`INSERT INTO runs (traceId, emailId, orderId, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`,
		traceID, emailID, order, string(timingsJSON), string(countsJSON))
	return err
}

// OrdersForEmail lists the orders created from an email, oldest first.
func (d *DB) OrdersForEmail(emailID int) ([]string, error) {
	rows, err := d.conn.Query(`SELECT orderId FROM runs WHERE emailId = ? AND orderId IS NOT NULL ORDER BY id`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

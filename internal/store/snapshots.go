package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cyclelog/internal/model"
)

const snapshotColumns = `id, current_situation, saved_at, description, snapshot_data`

// SaveSnapshot copies the whole answer log into an immutable snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, situation model.Situation, description *string) (int64, error) {
	const op = "save snapshot"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	if !situation.Valid() {
		return 0, invalidInput(op, "unknown situation %q", situation)
	}
	now := s.timestamp()

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		answers, err := readAnswers(ctx, tx, op, `SELECT `+answerColumns+` FROM question_answers ORDER BY id ASC`)
		if err != nil {
			return err
		}
		payload, err := model.EncodePayload(situation, now, answers)
		if err != nil {
			return &Error{Code: CodeSerializationFailure, Op: op, Message: "encode payload", Err: err}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_states (current_situation, saved_at, description, snapshot_data)
			VALUES (?, ?, ?, ?)
		`, string(situation), model.FormatTime(now), nullString(description), string(payload))
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}
		slog.Info("snapshot saved", "id", id, "answers", len(answers))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListSnapshots returns snapshot headers, newest first. Payloads are left
// out; use GetSnapshot for the content.
func (s *Store) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	const op = "list snapshots"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM workflow_states
		ORDER BY julianday(saved_at) DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	snapshots := []model.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		snap.Payload = nil
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return snapshots, nil
}

// GetSnapshot returns one snapshot with its decoded answers.
func (s *Store) GetSnapshot(ctx context.Context, id int64) (model.SnapshotDetails, error) {
	const op = "get snapshot"
	if err := s.ensureReady(op); err != nil {
		return model.SnapshotDetails{}, err
	}
	snap, err := s.getSnapshot(ctx, op, id)
	if err != nil {
		return model.SnapshotDetails{}, err
	}
	decoded, err := decodeSnapshot(op, snap)
	if err != nil {
		return model.SnapshotDetails{}, err
	}
	return model.SnapshotDetails{Snapshot: snap, Answers: decoded.Answers}, nil
}

// RestoreSnapshot replaces the answer log with the snapshot's copy and
// returns the situation it was saved at. The payload is fully validated
// before anything is deleted; a malformed payload leaves the store as is.
// Answer ids and timestamps are preserved.
func (s *Store) RestoreSnapshot(ctx context.Context, id int64) (model.Situation, error) {
	const op = "restore snapshot"
	if err := s.ensureReady(op); err != nil {
		return "", err
	}
	snap, err := s.getSnapshot(ctx, op, id)
	if err != nil {
		return "", err
	}
	decoded, err := decodeSnapshot(op, snap)
	if err != nil {
		return "", err
	}

	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM question_answers`); err != nil {
			return fmt.Errorf("%s: clear answers: %w", op, err)
		}
		for _, a := range decoded.Answers {
			if err := insertAnswerWithID(ctx, tx, a); err != nil {
				return fmt.Errorf("%s: insert answer %d: %w", op, a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	slog.Info("snapshot restored", "id", id, "answers", len(decoded.Answers))
	return snap.CurrentSituation, nil
}

// DeleteSnapshot removes a snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id int64) error {
	const op = "delete snapshot"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM workflow_states WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(result, op, "snapshot", id)
}

func (s *Store) getSnapshot(ctx context.Context, op string, id int64) (model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM workflow_states WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, notFound(op, "snapshot", id)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	return snap, nil
}

func decodeSnapshot(op string, snap model.Snapshot) (*model.DecodedPayload, error) {
	decoded, err := model.DecodePayload(snap.Payload)
	if err != nil {
		return nil, &Error{
			Code:    CodeSerializationFailure,
			Op:      op,
			Entity:  "snapshot",
			ID:      snap.ID,
			Message: "snapshot payload is malformed",
			Err:     err,
		}
	}
	for _, a := range decoded.Answers {
		if !a.Situation.Valid() {
			return nil, &Error{
				Code:    CodeSerializationFailure,
				Op:      op,
				Entity:  "snapshot",
				ID:      snap.ID,
				Message: fmt.Sprintf("answer %d has unknown situation %q", a.ID, a.Situation),
			}
		}
	}
	return decoded, nil
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var snap model.Snapshot
	var situation, savedAt, data string
	var description sql.NullString

	if err := row.Scan(&snap.ID, &situation, &savedAt, &description, &data); err != nil {
		return model.Snapshot{}, err
	}
	var err error
	snap.CurrentSituation = model.Situation(situation)
	if snap.SavedAt, err = parseTime("saved_at", savedAt); err != nil {
		return model.Snapshot{}, err
	}
	snap.Description = stringPtr(description)
	snap.Payload = []byte(data)
	return snap, nil
}

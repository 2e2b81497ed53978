package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PayloadVersion is the snapshot envelope version written by EncodePayload.
const PayloadVersion = 1

// ErrMalformedPayload is wrapped by every DecodePayload failure.
var ErrMalformedPayload = errors.New("malformed snapshot payload")

//go:embed payload.schema.json
var payloadSchemaJSON string

const payloadSchemaURL = "https://cyclelog.local/schema/snapshot-payload-v1.json"

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(payloadSchemaURL, bytes.NewReader([]byte(payloadSchemaJSON))); err != nil {
			payloadSchemaErr = fmt.Errorf("add payload schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile(payloadSchemaURL)
	})
	return payloadSchema, payloadSchemaErr
}

// envelope is the on-disk snapshot payload.
type envelope struct {
	Version   int             `json:"version"`
	Situation string          `json:"situation,omitempty"`
	SavedAt   string          `json:"saved_at,omitempty"`
	Checksum  string          `json:"checksum,omitempty"`
	Answers   []payloadAnswer `json:"answers"`
}

type payloadAnswer struct {
	ID         int64  `json:"id"`
	QuestionID string `json:"question_id"`
	Situation  string `json:"situation"`
	Answer     string `json:"answer"`
	AnsweredAt string `json:"answered_at"`
	IntentID   *int64 `json:"intent_id"`
	ProblemID  *int64 `json:"problem_id"`
	ParentID   *int64 `json:"parent_id"`
	CycleID    *int64 `json:"cycle_id"`
}

// DecodedPayload is the validated content of a snapshot payload.
type DecodedPayload struct {
	Version   int
	Situation Situation
	SavedAt   *time.Time
	Answers   []Answer
}

// EncodePayload serializes answers into a versioned envelope with checksum.
func EncodePayload(situation Situation, savedAt time.Time, answers []Answer) ([]byte, error) {
	sum, err := AnswersChecksum(answers)
	if err != nil {
		return nil, err
	}
	env := envelope{
		Version:   PayloadVersion,
		Situation: string(situation),
		SavedAt:   FormatTime(savedAt),
		Checksum:  sum,
		Answers:   make([]payloadAnswer, len(answers)),
	}
	for i, a := range answers {
		env.Answers[i] = payloadAnswer{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			Situation:  string(a.Situation),
			Answer:     a.Text,
			AnsweredAt: FormatTime(a.AnsweredAt),
			IntentID:   a.IntentID,
			ProblemID:  a.ProblemID,
			ParentID:   a.ParentID,
			CycleID:    a.CycleID,
		}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload validates and decodes a snapshot payload.
//
// Both the versioned envelope and the legacy bare array of answers are
// accepted. The whole payload is checked (schema, timestamps, duplicate ids,
// checksum) before anything is returned, so callers can rely on a nil error
// meaning every row is restorable.
func DecodePayload(data []byte) (*DecodedPayload, error) {
	schema, err := compiledPayloadSchema()
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var env envelope
	if _, legacy := raw.([]any); legacy {
		if err := json.Unmarshal(data, &env.Answers); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	} else if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := &DecodedPayload{
		Version:   env.Version,
		Situation: Situation(env.Situation),
		Answers:   make([]Answer, 0, len(env.Answers)),
	}
	if env.SavedAt != "" {
		t, err := ParseTime(env.SavedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: saved_at: %v", ErrMalformedPayload, err)
		}
		out.SavedAt = &t
	}

	seen := make(map[int64]bool, len(env.Answers))
	for i, pa := range env.Answers {
		if seen[pa.ID] {
			return nil, fmt.Errorf("%w: answers[%d]: duplicate id %d", ErrMalformedPayload, i, pa.ID)
		}
		seen[pa.ID] = true

		at, err := ParseTime(pa.AnsweredAt)
		if err != nil {
			return nil, fmt.Errorf("%w: answers[%d]: %v", ErrMalformedPayload, i, err)
		}
		out.Answers = append(out.Answers, Answer{
			ID:         pa.ID,
			QuestionID: pa.QuestionID,
			Situation:  Situation(pa.Situation),
			Text:       pa.Answer,
			AnsweredAt: at,
			IntentID:   pa.IntentID,
			ProblemID:  pa.ProblemID,
			ParentID:   pa.ParentID,
			CycleID:    pa.CycleID,
		})
	}

	if env.Checksum != "" {
		sum, err := AnswersChecksum(out.Answers)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if sum != env.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedPayload)
		}
	}

	return out, nil
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSnapshot separates snapshot checksums from any other hash use.
const DomainSnapshot = "cyclelog/snapshot/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AnswersChecksum returns the content checksum of an answer list.
// The checksum is independent of JSON formatting and key order.
func AnswersChecksum(answers []Answer) (string, error) {
	list := make([]any, len(answers))
	for i, a := range answers {
		list[i] = canonicalAnswer(a)
	}
	data, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("answers checksum: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// canonicalAnswer maps an answer to canonical form, omitting nil links.
func canonicalAnswer(a Answer) map[string]any {
	m := map[string]any{
		"id":          a.ID,
		"question_id": a.QuestionID,
		"situation":   string(a.Situation),
		"answer":      a.Text,
		"answered_at": FormatTime(a.AnsweredAt),
	}
	optional := map[string]*int64{
		"intent_id":  a.IntentID,
		"problem_id": a.ProblemID,
		"parent_id":  a.ParentID,
		"cycle_id":   a.CycleID,
	}
	for k, v := range optional {
		if v != nil {
			m[k] = *v
		}
	}
	return m
}

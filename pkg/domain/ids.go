// Package domain defines the identifier types shared across the registry.
//
// Identities are opaque: they are issued by an external identity layer and the
// registry never interprets them beyond equality and zero checks. Record keys
// are fixed-size binary values supplied by the caller, rendered as hex at the
// boundary.
package domain

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	dErrors "medledger/pkg/domain-errors"
)

// Principal identifies a caller, owner, or accessor. The zero value is the
// null identity and is never a valid participant.
type Principal uuid.UUID

// ParsePrincipal validates and parses a principal identity from its string
// form. Empty, malformed, and nil-zero inputs are rejected at this trust
// boundary.
func ParsePrincipal(s string) (Principal, error) {
	if strings.TrimSpace(s) == "" {
		return Principal{}, dErrors.New(dErrors.CodeBadRequest, "principal must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Principal{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid principal")
	}
	if u == uuid.Nil {
		return Principal{}, dErrors.New(dErrors.CodeBadRequest, "principal must not be the nil identity")
	}
	return Principal(u), nil
}

func (p Principal) String() string { return uuid.UUID(p).String() }

// IsNil reports whether p is the null identity.
func (p Principal) IsNil() bool { return uuid.UUID(p) == uuid.Nil }

// RecordIDSize is the length of a record key in bytes.
const RecordIDSize = 32

// RecordID is the fixed-size binary key of a record. Callers supply it; the
// registry only guarantees uniqueness once created.
type RecordID [RecordIDSize]byte

// ParseRecordID parses a record key from its canonical lowercase hex form.
func ParseRecordID(s string) (RecordID, error) {
	var id RecordID
	if len(s) != hex.EncodedLen(RecordIDSize) {
		return id, dErrors.New(dErrors.CodeBadRequest, "record id must be 64 hex characters")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id")
	}
	copy(id[:], b)
	if id.IsZero() {
		return RecordID{}, dErrors.New(dErrors.CodeBadRequest, "record id must not be all zero")
	}
	return id, nil
}

func (r RecordID) String() string { return hex.EncodeToString(r[:]) }

// IsZero reports whether r is the all-zero key.
func (r RecordID) IsZero() bool { return r == RecordID{} }

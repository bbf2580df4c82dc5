package record

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
)

func newPrincipal(t *testing.T) id.Principal {
	t.Helper()
	p, err := id.ParsePrincipal(uuid.NewString())
	require.NoError(t, err)
	return p
}

func newRecordID(t *testing.T, fill string) id.RecordID {
	t.Helper()
	rid, err := id.ParseRecordID(strings.Repeat(fill, id.RecordIDSize))
	require.NoError(t, err)
	return rid
}

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) TestCreateThenGet() {
	rec := Record{
		ID:            newRecordID(s.T(), "a1"),
		DataReference: "hashABC",
		Owner:         newPrincipal(s.T()),
		LastModified:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.store.Create(context.Background(), rec))

	got, err := s.store.Get(context.Background(), rec.ID)
	s.Require().NoError(err)
	s.Equal(rec, got)
}

func (s *InMemoryStoreSuite) TestCreateDuplicateKeyConflicts() {
	rec := Record{ID: newRecordID(s.T(), "a1"), DataReference: "one", Owner: newPrincipal(s.T())}
	s.Require().NoError(s.store.Create(context.Background(), rec))

	dup := Record{ID: rec.ID, DataReference: "two", Owner: newPrincipal(s.T())}
	err := s.store.Create(context.Background(), dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.Get(context.Background(), rec.ID)
	s.Require().NoError(err)
	s.Equal("one", got.DataReference, "conflicting create must not touch the stored record")
}

func (s *InMemoryStoreSuite) TestGetUnknownKeyReturnsNotFound() {
	_, err := s.store.Get(context.Background(), newRecordID(s.T(), "ff"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateReference() {
	rec := Record{ID: newRecordID(s.T(), "a1"), DataReference: "old", Owner: newPrincipal(s.T())}
	s.Require().NoError(s.store.Create(context.Background(), rec))

	modified := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.UpdateReference(context.Background(), rec.ID, "new", modified))

	got, err := s.store.Get(context.Background(), rec.ID)
	s.Require().NoError(err)
	s.Equal("new", got.DataReference)
	s.Equal(modified, got.LastModified)
	s.Equal(rec.Owner, got.Owner, "update must not change ownership")
}

func (s *InMemoryStoreSuite) TestUpdateUnknownKeyReturnsNotFound() {
	err := s.store.UpdateReference(context.Background(), newRecordID(s.T(), "ff"), "x", time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByOwnerPreservesCreationOrder() {
	owner := newPrincipal(s.T())
	other := newPrincipal(s.T())
	first := newRecordID(s.T(), "01")
	second := newRecordID(s.T(), "02")
	third := newRecordID(s.T(), "03")

	s.Require().NoError(s.store.Create(context.Background(), Record{ID: first, Owner: owner}))
	s.Require().NoError(s.store.Create(context.Background(), Record{ID: third, Owner: other}))
	s.Require().NoError(s.store.Create(context.Background(), Record{ID: second, Owner: owner}))

	ids, err := s.store.ListByOwner(context.Background(), owner)
	s.Require().NoError(err)
	s.Equal([]id.RecordID{first, second}, ids)
}

func (s *InMemoryStoreSuite) TestListByOwnerEmptyForUnknownOwner() {
	ids, err := s.store.ListByOwner(context.Background(), newPrincipal(s.T()))
	s.Require().NoError(err)
	s.Empty(ids)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

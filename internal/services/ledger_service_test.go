package services

import (
	"context"
	"testing"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakePublisher records published events in memory.
type fakePublisher struct {
	events []*amqp.RecordEventMessage
}

func (f *fakePublisher) PublishRecordEvent(_ context.Context, msg *amqp.RecordEventMessage) error {
	f.events = append(f.events, msg)
	return nil
}

type LedgerServiceTestSuite struct {
	suite.Suite
	repo      *storage.SQLiteRepository
	ledger    *LedgerService
	publisher *fakePublisher
	ctx       context.Context
	owner     *core.User
	other     *core.User
}

func (s *LedgerServiceTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(s.T(), err)
	s.repo = repo
	s.publisher = &fakePublisher{}
	s.ledger = NewLedgerService(repo, s.publisher)
	s.ctx = context.Background()

	s.owner, err = repo.CreateUser(s.ctx, "Alice", "alice@example.com", "hash", core.RoleUser)
	require.NoError(s.T(), err)
	s.other, err = repo.CreateUser(s.ctx, "Bob", "bob@example.com", "hash", core.RoleUser)
	require.NoError(s.T(), err)
}

func (s *LedgerServiceTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *LedgerServiceTestSuite) save(owner int64, kind core.RecordKind, category string, cents int64, date core.Date) *core.Record {
	rec, err := s.ledger.SaveRecord(s.ctx, owner, kind, category, core.Money{Cents: cents}, date, "")
	require.NoError(s.T(), err)
	return rec
}

func (s *LedgerServiceTestSuite) TestFindAllUnfiltered() {
	// Income records {SALARY 100 on 2025-01-10, BONUS 25 on 2025-02-12}.
	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, core.NewDate(2025, 1, 10))
	s.save(s.owner.ID, core.KindIncome, "BONUS", 2500, core.NewDate(2025, 2, 12))

	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "")
	require.NoError(s.T(), err)

	assert.Len(s.T(), set.Records, 2)
	assert.Equal(s.T(), int64(12500), set.Total.Cents)
	assert.Equal(s.T(), int64(1042), set.AverageTotal.Cents, "125.00/12 rounds half-up to 10.42")
	assert.Nil(s.T(), set.FilteredTotal, "no filter means absent, not zero")
	assert.False(s.T(), set.Filtered())
	// Newest first.
	assert.Equal(s.T(), "BONUS", set.Records[0].Category)
}

func (s *LedgerServiceTestSuite) TestFindAllWithCategoryFilter() {
	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, core.NewDate(2025, 1, 10))
	s.save(s.owner.ID, core.KindIncome, "BONUS", 2500, core.NewDate(2025, 2, 12))

	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "SALARY")
	require.NoError(s.T(), err)

	require.Len(s.T(), set.Records, 1)
	assert.Equal(s.T(), "SALARY", set.Records[0].Category)
	assert.Equal(s.T(), int64(12500), set.Total.Cents, "total stays unfiltered")
	require.NotNil(s.T(), set.FilteredTotal)
	assert.Equal(s.T(), int64(10000), set.FilteredTotal.Cents)
	assert.Equal(s.T(), int64(833), set.AverageTotal.Cents, "average recomputed from the filtered total")
}

func (s *LedgerServiceTestSuite) TestFindAllAllCategoriesSentinel() {
	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, core.NewDate(2025, 1, 10))

	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, core.AllCategories)
	require.NoError(s.T(), err)
	assert.Len(s.T(), set.Records, 1)
	assert.Nil(s.T(), set.FilteredTotal)
}

func (s *LedgerServiceTestSuite) TestFindAllUnknownFilterFallsBack() {
	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, core.NewDate(2025, 1, 10))
	s.save(s.owner.ID, core.KindIncome, "BONUS", 2500, core.NewDate(2025, 2, 12))

	unfiltered, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "")
	require.NoError(s.T(), err)
	unknown, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "LOTTERY")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), unfiltered.Total, unknown.Total)
	assert.Equal(s.T(), unfiltered.AverageTotal, unknown.AverageTotal)
	assert.Equal(s.T(), unfiltered.MonthTotal, unknown.MonthTotal)
	assert.Equal(s.T(), len(unfiltered.Records), len(unknown.Records))
	assert.Nil(s.T(), unknown.FilteredTotal)
}

func (s *LedgerServiceTestSuite) TestFindAllEmptyLedger() {
	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "")
	require.NoError(s.T(), err)

	assert.Empty(s.T(), set.Records)
	assert.Zero(s.T(), set.Total.Cents)
	assert.Zero(s.T(), set.AverageTotal.Cents)
	assert.Zero(s.T(), set.MonthTotal.Cents)
	assert.Nil(s.T(), set.FilteredTotal)
}

func (s *LedgerServiceTestSuite) TestMonthTotalIgnoresFilterAndOtherMonths() {
	today := core.Today()
	lastMonth := core.Date{Time: today.AddDate(0, -1, 0)}

	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, today)
	s.save(s.owner.ID, core.KindIncome, "BONUS", 2500, today)
	s.save(s.owner.ID, core.KindIncome, "SALARY", 99900, lastMonth)

	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "BONUS")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), int64(12500), set.MonthTotal.Cents,
		"month total covers the whole current month regardless of filter")
	require.NotNil(s.T(), set.FilteredTotal)
	assert.Equal(s.T(), int64(2500), set.FilteredTotal.Cents)
}

func (s *LedgerServiceTestSuite) TestOwnersNeverSeeEachOther() {
	s.save(s.owner.ID, core.KindIncome, "SALARY", 10000, core.NewDate(2025, 1, 10))
	s.save(s.other.ID, core.KindIncome, "SALARY", 55500, core.NewDate(2025, 1, 10))

	set, err := s.ledger.FindAll(s.ctx, s.owner.ID, core.KindIncome, "")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), int64(10000), set.Total.Cents)
	for _, r := range set.Records {
		assert.Equal(s.T(), s.owner.ID, r.UserID)
	}
}

func (s *LedgerServiceTestSuite) TestRecordLifecycle() {
	created := s.save(s.owner.ID, core.KindExpense, "FOOD", 1500, core.NewDate(2025, 4, 1))

	found, err := s.ledger.FindRecord(s.ctx, core.KindExpense, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.Category, found.Category)
	assert.Equal(s.T(), created.Amount, found.Amount)
	assert.Equal(s.T(), created.Date.String(), found.Date.String())

	updated, err := s.ledger.UpdateRecord(s.ctx, core.KindExpense, created.ID,
		"TRANSPORT", core.Money{Cents: 300}, core.NewDate(2025, 4, 2), "bus ticket")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "TRANSPORT", updated.Category)

	found, err = s.ledger.FindRecord(s.ctx, core.KindExpense, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "TRANSPORT", found.Category)
	assert.Equal(s.T(), int64(300), found.Amount.Cents)
	assert.Equal(s.T(), "bus ticket", found.Description)

	require.NoError(s.T(), s.ledger.DeleteRecord(s.ctx, core.KindExpense, created.ID))
	_, err = s.ledger.FindRecord(s.ctx, core.KindExpense, created.ID)
	assert.ErrorIs(s.T(), err, ErrRecordNotFound)
}

func (s *LedgerServiceTestSuite) TestFindRecordNotFoundMessage() {
	_, err := s.ledger.FindRecord(s.ctx, core.KindIncome, 42)
	require.Error(s.T(), err)
	assert.Equal(s.T(), "income record not found with id: 42", err.Error())

	var nf *NotFoundError
	require.ErrorAs(s.T(), err, &nf)
	assert.Equal(s.T(), int64(42), nf.ID)
}

func (s *LedgerServiceTestSuite) TestUpdateMissingRecordPropagatesNotFound() {
	_, err := s.ledger.UpdateRecord(s.ctx, core.KindIncome, 42,
		"SALARY", core.Money{Cents: 100}, core.NewDate(2025, 1, 1), "")
	assert.ErrorIs(s.T(), err, ErrRecordNotFound)
}

func (s *LedgerServiceTestSuite) TestSaveRecordValidation() {
	cases := []struct {
		name     string
		category string
		amount   core.Money
		date     core.Date
		wantErr  error
	}{
		{"bad category", "LOTTERY", core.Money{Cents: 100}, core.NewDate(2025, 1, 1), core.ErrInvalidCategory},
		{"wrong kind category", "FOOD", core.Money{Cents: 100}, core.NewDate(2025, 1, 1), core.ErrInvalidCategory},
		{"negative amount", "SALARY", core.Money{Cents: -1}, core.NewDate(2025, 1, 1), core.ErrInvalidAmount},
		{"zero date", "SALARY", core.Money{Cents: 100}, core.Date{}, core.ErrInvalidDate},
	}
	for _, tc := range cases {
		_, err := s.ledger.SaveRecord(s.ctx, s.owner.ID, core.KindIncome, tc.category, tc.amount, tc.date, "")
		assert.ErrorIs(s.T(), err, tc.wantErr, tc.name)
	}
}

func (s *LedgerServiceTestSuite) TestMutationsPublishEvents() {
	created := s.save(s.owner.ID, core.KindIncome, "SALARY", 100, core.NewDate(2025, 1, 1))
	_, err := s.ledger.UpdateRecord(s.ctx, core.KindIncome, created.ID,
		"BONUS", core.Money{Cents: 200}, core.NewDate(2025, 1, 2), "")
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.ledger.DeleteRecord(s.ctx, core.KindIncome, created.ID))

	require.Len(s.T(), s.publisher.events, 3)
	assert.Equal(s.T(), amqp.ActionCreated, s.publisher.events[0].Action)
	assert.Equal(s.T(), amqp.ActionUpdated, s.publisher.events[1].Action)
	assert.Equal(s.T(), amqp.ActionDeleted, s.publisher.events[2].Action)
}

func (s *LedgerServiceTestSuite) TestNilPublisherIsFine() {
	ledger := NewLedgerService(s.repo, nil)
	_, err := ledger.SaveRecord(s.ctx, s.owner.ID, core.KindIncome,
		"SALARY", core.Money{Cents: 100}, core.NewDate(2025, 1, 1), "")
	assert.NoError(s.T(), err)
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

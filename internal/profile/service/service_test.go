package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/profile/models"
	"entrypass/internal/profile/store"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	audit "entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/audit/publisher"
	auditmemory "entrypass/pkg/platform/audit/store/memory"
)

// flakyBackend fails the first N calls of each operation.
type flakyBackend struct {
	store.Backend
	mu          sync.Mutex
	failUpserts int
	failQueries int
	upserts     int
}

var errDiskOnFire = errors.New("connection reset")

func (b *flakyBackend) Upsert(ctx context.Context, rec store.Record) error {
	b.mu.Lock()
	b.upserts++
	fail := b.failUpserts > 0
	if fail {
		b.failUpserts--
	}
	b.mu.Unlock()
	if fail {
		return errDiskOnFire
	}
	return b.Backend.Upsert(ctx, rec)
}

func (b *flakyBackend) Query(ctx context.Context, q store.Query) ([]store.Record, error) {
	b.mu.Lock()
	fail := b.failQueries > 0
	if fail {
		b.failQueries--
	}
	b.mu.Unlock()
	if fail {
		return nil, errDiskOnFire
	}
	return b.Backend.Query(ctx, q)
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *flakyBackend
	auditLog *auditmemory.InMemoryStore
	service  *Service
	userID   id.UserID
	clock    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = &flakyBackend{Backend: store.NewInMemoryBackend()}
	s.auditLog = auditmemory.NewInMemoryStore()
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.service = New(s.backend,
		WithRetry(3, time.Millisecond),
		WithAuditPublisher(publisher.NewPublisher(s.auditLog)),
		WithClock(func() time.Time {
			s.clock = s.clock.Add(time.Second)
			return s.clock
		}),
	)
	s.userID = id.UserID(id.NewEntityID())
}

func (s *ServiceSuite) TestLoadWithoutRecordsReturnsNil() {
	entities, err := s.service.Load(s.ctx, s.userID, "th")
	s.Require().NoError(err)
	s.Nil(entities)
}

func (s *ServiceSuite) TestProgressiveFill() {
	first, err := s.service.Save(s.ctx, s.userID, &models.Passport{PassportNumber: "E12345678"})
	s.Require().NoError(err)

	second, err := s.service.Save(s.ctx, s.userID, &models.Passport{FullName: "ZHANG WEI", Nationality: "CHN"})
	s.Require().NoError(err)
	s.Equal(first.Base().ID, second.Base().ID, "later saves merge into the current passport")

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	s.Require().Len(entities.Passports, 1)
	p := entities.Passports[0]
	s.Equal("E12345678", p.PassportNumber)
	s.Equal("ZHANG WEI", p.FullName)
	s.Equal("CHN", p.Nationality)
	s.True(p.UpdatedAt.After(p.CreatedAt))
}

func (s *ServiceSuite) TestMergeNeverClobbersWithBlanks() {
	_, err := s.service.Save(s.ctx, s.userID, &models.PersonalInfo{Email: "wei@example.com", Occupation: "ENGINEER"})
	s.Require().NoError(err)

	_, err = s.service.Save(s.ctx, s.userID, &models.PersonalInfo{Email: "  ", Occupation: "", ResidenceCity: "SHANGHAI"})
	s.Require().NoError(err)

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	s.Require().Len(entities.PersonalInfos, 1)
	info := entities.PersonalInfos[0]
	s.Equal("wei@example.com", info.Email)
	s.Equal("ENGINEER", info.Occupation)
	s.Equal("SHANGHAI", info.ResidenceCity)
}

func (s *ServiceSuite) TestIdempotentReload() {
	patch := &models.TravelInfo{DestinationID: "th", ArrivalFlightNumber: "TG615", Extra: map[string]string{"province": "BANGKOK"}}
	_, err := s.service.Save(s.ctx, s.userID, patch)
	s.Require().NoError(err)
	writes := s.backend.upserts

	before, err := s.service.Load(s.ctx, s.userID, "th")
	s.Require().NoError(err)

	_, err = s.service.Save(s.ctx, s.userID, &models.TravelInfo{DestinationID: "th"})
	s.Require().NoError(err)
	s.Equal(writes, s.backend.upserts, "an empty patch writes nothing")

	after, err := s.service.Load(s.ctx, s.userID, "th")
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *ServiceSuite) TestTravelInfoIsPerDestination() {
	_, err := s.service.Save(s.ctx, s.userID, &models.TravelInfo{DestinationID: "th", ArrivalDate: "2026-04-01"})
	s.Require().NoError(err)
	_, err = s.service.Save(s.ctx, s.userID, &models.TravelInfo{DestinationID: "my", ArrivalDate: "2026-05-01"})
	s.Require().NoError(err)

	th, err := s.service.Load(s.ctx, s.userID, "th")
	s.Require().NoError(err)
	s.Require().NotNil(th.TravelInfo)
	s.Equal("2026-04-01", th.TravelInfo.ArrivalDate)

	my, err := s.service.Load(s.ctx, s.userID, "my")
	s.Require().NoError(err)
	s.Equal("2026-05-01", my.TravelInfo.ArrivalDate)

	_, err = s.service.Save(s.ctx, s.userID, &models.TravelInfo{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestFundItemsAppendUnlessAddressed() {
	amount := decimal.RequireFromString("500")
	first, err := s.service.Save(s.ctx, s.userID, &models.FundItem{Type: models.FundCash, Amount: &amount})
	s.Require().NoError(err)
	_, err = s.service.Save(s.ctx, s.userID, &models.FundItem{Type: models.FundCard})
	s.Require().NoError(err)

	addressed := &models.FundItem{Currency: "USD"}
	addressed.ID = first.Base().ID
	_, err = s.service.Save(s.ctx, s.userID, addressed)
	s.Require().NoError(err)

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	s.Require().Len(entities.FundItems, 2)
	got := entities.FindByID(models.KindFundItem, first.Base().ID).(*models.FundItem)
	s.Equal("USD", got.Currency)
	s.True(got.Amount.Equal(amount))

	_, err = s.service.Save(s.ctx, s.userID, &models.FundItem{Type: "gold"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestNewPassportUnderClientID() {
	_, err := s.service.Save(s.ctx, s.userID, &models.Passport{PassportNumber: "E12345678"})
	s.Require().NoError(err)

	second := &models.Passport{PassportNumber: "123456789", Nationality: "USA"}
	second.ID = id.NewEntityID()
	_, err = s.service.Save(s.ctx, s.userID, second)
	s.Require().NoError(err)

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	s.Len(entities.Passports, 2)
}

func (s *ServiceSuite) TestPersonalInfoFollowsPassportLink() {
	primary := true
	p1, err := s.service.Save(s.ctx, s.userID, &models.Passport{PassportNumber: "E12345678", IsPrimary: &primary})
	s.Require().NoError(err)
	second := &models.Passport{PassportNumber: "123456789"}
	second.ID = id.NewEntityID()
	p2, err := s.service.Save(s.ctx, s.userID, second)
	s.Require().NoError(err)

	p1ID, p2ID := p1.Base().ID, p2.Base().ID
	first := &models.PersonalInfo{PassportID: &p1ID, Email: "one@example.com"}
	_, err = s.service.Save(s.ctx, s.userID, first)
	s.Require().NoError(err)
	linked := &models.PersonalInfo{PassportID: &p2ID, Email: "two@example.com"}
	linked.ID = id.NewEntityID()
	_, err = s.service.Save(s.ctx, s.userID, linked)
	s.Require().NoError(err)

	_, err = s.service.Save(s.ctx, s.userID, &models.PersonalInfo{PassportID: &p2ID, Occupation: "PILOT"})
	s.Require().NoError(err)

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	got := entities.EffectivePersonalInfo(second)
	s.Equal("two@example.com", got.Email)
	s.Equal("PILOT", got.Occupation)
	s.Equal("one@example.com", entities.EffectivePersonalInfo(entities.CurrentPassport()).Email)
}

func (s *ServiceSuite) TestDeleteChecksOwnership() {
	saved, err := s.service.Save(s.ctx, s.userID, &models.FundItem{Type: models.FundCash})
	s.Require().NoError(err)

	stranger := id.UserID(id.NewEntityID())
	err = s.service.Delete(s.ctx, stranger, models.KindFundItem, saved.Base().ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Require().NoError(s.service.Delete(s.ctx, s.userID, models.KindFundItem, saved.Base().ID))
	err = s.service.Delete(s.ctx, s.userID, models.KindFundItem, saved.Base().ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	events, err := s.auditLog.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventEntityDeleted), events[0].Action)
	s.Equal(saved.Base().ID.String(), events[0].Subject)
}

func (s *ServiceSuite) TestTransientWriteFailuresAreRetried() {
	s.backend.failUpserts = 2

	_, err := s.service.Save(s.ctx, s.userID, &models.Passport{FullName: "ZHANG WEI"})
	s.Require().NoError(err)
	s.Equal(3, s.backend.upserts)
}

func (s *ServiceSuite) TestExhaustedRetriesSurfacePersistenceError() {
	_, err := s.service.Save(s.ctx, s.userID, &models.Passport{FullName: "ZHANG WEI"})
	s.Require().NoError(err)

	s.backend.failUpserts = 3
	_, err = s.service.Save(s.ctx, s.userID, &models.Passport{FullName: "LI A MAO"})

	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	s.Equal(OpWrite, perr.Op)
	s.Equal(3, perr.Attempts)
	s.ErrorIs(err, errDiskOnFire)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)
	s.Equal("ZHANG WEI", entities.Passports[0].FullName, "stored data is untouched")
}

func (s *ServiceSuite) TestReadFailureSurfacesPersistenceError() {
	s.backend.failQueries = 5
	_, err := s.service.Load(s.ctx, s.userID, "th")

	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	s.Equal(OpRead, perr.Op)
}

// slowBackend widens the gap between reading a record and writing it back.
type slowBackend struct {
	store.Backend
	delay time.Duration
}

func (b *slowBackend) Query(ctx context.Context, q store.Query) ([]store.Record, error) {
	time.Sleep(b.delay)
	return b.Backend.Query(ctx, q)
}

func (b *slowBackend) Get(ctx context.Context, table models.Kind, entityID id.EntityID) (*store.Record, error) {
	time.Sleep(b.delay)
	return b.Backend.Get(ctx, table, entityID)
}

func (s *ServiceSuite) TestConcurrentSavesOfOneRecordBothLand() {
	svc := New(&slowBackend{Backend: store.NewInMemoryBackend(), delay: 20 * time.Millisecond})
	created, err := svc.Save(s.ctx, s.userID, &models.TravelInfo{DestinationID: "th", TransportMode: "AIR"})
	s.Require().NoError(err)
	passport, err := svc.Save(s.ctx, s.userID, &models.Passport{PassportNumber: "E12345678"})
	s.Require().NoError(err)

	flight := &models.TravelInfo{DestinationID: "th", ArrivalFlightNumber: "TG614"}
	hotel := &models.TravelInfo{DestinationID: "th", AccommodationName: "HOTEL A"}
	hotel.ID = created.Base().ID
	name := &models.Passport{FullName: "ZHANG WEI"}
	nationality := &models.Passport{Nationality: "CHN"}
	nationality.ID = passport.Base().ID

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, patch := range []models.Entity{flight, hotel, name, nationality} {
		wg.Add(1)
		go func(patch models.Entity) {
			defer wg.Done()
			_, err := svc.Save(s.ctx, s.userID, patch)
			errs <- err
		}(patch)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	entities, err := svc.Load(s.ctx, s.userID, "th")
	s.Require().NoError(err)
	s.Require().NotNil(entities.TravelInfo)
	s.Equal("TG614", entities.TravelInfo.ArrivalFlightNumber)
	s.Equal("HOTEL A", entities.TravelInfo.AccommodationName)
	s.Equal("AIR", entities.TravelInfo.TransportMode)
	s.Require().Len(entities.Passports, 1)
	s.Equal("ZHANG WEI", entities.Passports[0].FullName)
	s.Equal("CHN", entities.Passports[0].Nationality)
}

func (s *ServiceSuite) TestTargetID() {
	_, err := s.service.Save(s.ctx, s.userID, &models.Passport{PassportNumber: "E12345678"})
	s.Require().NoError(err)
	entities, err := s.service.Load(s.ctx, s.userID, "")
	s.Require().NoError(err)

	got, err := s.service.TargetID(s.ctx, s.userID, &models.Passport{FullName: "ZHANG WEI"})
	s.Require().NoError(err)
	s.Equal(entities.Passports[0].ID, got)

	got, err = s.service.TargetID(s.ctx, s.userID, &models.FundItem{Currency: "USD"})
	s.Require().NoError(err)
	s.True(got.IsNil(), "fund items without an ID are always new")
}

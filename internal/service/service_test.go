package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/repository/mocks"
)

type stubBins struct {
	info    models.BinInfo
	lastRaw string
}

func (b *stubBins) Lookup(_ context.Context, raw string) models.BinInfo {
	b.lastRaw = raw
	return b.info
}

type ServiceSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	repo *mocks.MockCardStore
	bins *stubBins
	svc  *Service
	ctx  context.Context
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.repo = mocks.NewMockCardStore(s.ctrl)
	s.bins = &stubBins{}
	s.svc = NewService(s.repo, s.bins, nil, quietLogger(), metrics.New(prometheus.NewRegistry()))
	s.ctx = context.Background()
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func sampleCard(id int64, number string) models.Card {
	return models.Card{
		ID:             id,
		CardNumber:     number,
		ExpiryMonth:    "12",
		ExpiryYear:     "2029",
		CVV:            "123",
		CardholderName: "Alice",
	}
}

func (s *ServiceSuite) TestListCards() {
	cards := []models.Card{sampleCard(2, "5555"), sampleCard(1, "4111")}
	s.repo.EXPECT().ListCards(gomock.Any()).Return(cards, nil)

	got, err := s.svc.ListCards(s.ctx)
	s.Require().NoError(err)
	s.Equal(cards, got)
}

func (s *ServiceSuite) TestListCardsStoreFailure() {
	s.repo.EXPECT().ListCards(gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.svc.ListCards(s.ctx)
	s.ErrorIs(err, ErrUpstream)
	s.ErrorContains(err, "connection reset")
}

func (s *ServiceSuite) TestGetCardNotFound() {
	s.repo.EXPECT().GetCard(gomock.Any(), int64(9)).Return(nil, repository.ErrCardNotFound)

	_, err := s.svc.GetCard(s.ctx, 9)
	s.ErrorIs(err, ErrNotFound)
	s.NotErrorIs(err, ErrUpstream)
}

func (s *ServiceSuite) TestCreateCard() {
	s.repo.EXPECT().CreateCard(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, card *models.Card) error {
			s.Equal("4111 1111 1111 1111", card.CardNumber)
			s.Nil(card.IsLive)
			card.ID = 10
			return nil
		})

	card, err := s.svc.CreateCard(s.ctx, models.CardCreate{
		CardNumber:     "4111 1111 1111 1111",
		ExpiryMonth:    "12",
		ExpiryYear:     "2029",
		CVV:            "123",
		CardholderName: "Alice",
	})
	s.Require().NoError(err)
	s.Equal(int64(10), card.ID)
	s.Equal("Alice", card.CardholderName)
}

func (s *ServiceSuite) TestCreateCardMissingFields() {
	_, err := s.svc.CreateCard(s.ctx, models.CardCreate{CardNumber: "4111", CVV: "123"})

	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorContains(err, "expiry_month is required")
	s.ErrorContains(err, "cardholder_name is required")
}

func (s *ServiceSuite) TestCreateCardTooLong() {
	_, err := s.svc.CreateCard(s.ctx, models.CardCreate{
		CardNumber:     "4111 1111 1111 1111 1111",
		ExpiryMonth:    "12",
		ExpiryYear:     "2029",
		CVV:            "123",
		CardholderName: "Alice",
	})
	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorContains(err, "card_number must be at most 19 characters")
}

func (s *ServiceSuite) TestUpdateCardAppliesOnlySuppliedFields() {
	updated := sampleCard(4, "4111")
	updated.CardholderName = "Bob"
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), []repository.Change{
		{Column: repository.ColumnCVV, Value: "999"},
		{Column: repository.ColumnCardholderName, Value: "Bob"},
	}).Return(&updated, nil)

	card, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{
		CVV:            models.Some("999"),
		CardholderName: models.Some("Bob"),
	})
	s.Require().NoError(err)
	s.Equal("Bob", card.CardholderName)
}

func (s *ServiceSuite) TestUpdateCardEmptyPayloadLeavesCardUnchanged() {
	stored := sampleCard(4, "4111")
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), gomock.Nil()).Return(&stored, nil)

	card, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{})
	s.Require().NoError(err)
	s.Equal(stored, *card)
}

func (s *ServiceSuite) TestUpdateCardRejectsNullBaseField() {
	_, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{CVV: models.Null[string]()})
	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorContains(err, "cvv cannot be null")
}

func (s *ServiceSuite) TestUpdateCardRejectsEmptyValue() {
	_, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{CVV: models.Some("")})
	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorContains(err, "cvv is required")
}

func (s *ServiceSuite) TestUpdateCardRejectsTooLongValues() {
	_, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{
		CardNumber:  models.Some("4111 1111 1111 1111 1111 11"),
		ExpiryMonth: models.Some("123"),
		CVV:         models.Some("999"),
	})
	s.ErrorIs(err, ErrInvalidInput)
	s.ErrorContains(err, "card_number must be at most 19 characters")
	s.ErrorContains(err, "expiry_month must be at most 2 characters")
	s.NotContains(err.Error(), "cvv")
}

func (s *ServiceSuite) TestUpdateCardNotFound() {
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), gomock.Any()).Return(nil, repository.ErrCardNotFound)

	_, err := s.svc.UpdateCard(s.ctx, 4, models.CardUpdate{CVV: models.Some("1")})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestUpdateStatus() {
	live := true
	tested := "gas station"
	stored := sampleCard(4, "4111")
	stored.IsLive = &live
	stored.TestedAt = &tested
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), []repository.Change{
		{Column: repository.ColumnIsLive, Value: &live},
		{Column: repository.ColumnTestedAt, Value: &tested},
	}).Return(&stored, nil)

	card, err := s.svc.UpdateStatus(s.ctx, 4, models.StatusUpdate{
		IsLive:   models.Some(true),
		TestedAt: models.Some("gas station"),
	})
	s.Require().NoError(err)
	s.Equal(&live, card.IsLive)
}

func (s *ServiceSuite) TestUpdateStatusNullClearsField() {
	stored := sampleCard(4, "4111")
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), []repository.Change{
		{Column: repository.ColumnIsLive, Value: (*bool)(nil)},
	}).Return(&stored, nil)

	card, err := s.svc.UpdateStatus(s.ctx, 4, models.StatusUpdate{IsLive: models.Null[bool]()})
	s.Require().NoError(err)
	s.Nil(card.IsLive)
}

func (s *ServiceSuite) TestUpdateStatusEmptyPayloadNeverTouchesStore() {
	for _, id := range []int64{1, 999999} {
		_, err := s.svc.UpdateStatus(s.ctx, id, models.StatusUpdate{})
		s.ErrorIs(err, ErrInvalidInput)
	}
}

func (s *ServiceSuite) TestUpdateStatusNotFound() {
	s.repo.EXPECT().UpdateCard(gomock.Any(), int64(4), gomock.Any()).Return(nil, repository.ErrCardNotFound)

	_, err := s.svc.UpdateStatus(s.ctx, 4, models.StatusUpdate{TestedAt: models.Some("x")})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestDeleteCard() {
	s.repo.EXPECT().DeleteCard(gomock.Any(), int64(3)).Return(nil)
	s.NoError(s.svc.DeleteCard(s.ctx, 3))

	s.repo.EXPECT().DeleteCard(gomock.Any(), int64(3)).Return(repository.ErrCardNotFound)
	s.ErrorIs(s.svc.DeleteCard(s.ctx, 3), ErrNotFound)
}

func (s *ServiceSuite) TestLookupBinDelegates() {
	scheme := "visa"
	s.bins.info = models.BinInfo{Scheme: &scheme}

	info := s.svc.LookupBin(s.ctx, "4111-1111")
	s.Equal("4111-1111", s.bins.lastRaw)
	s.Equal(&scheme, info.Scheme)
}

func (s *ServiceSuite) TestPing() {
	s.repo.EXPECT().Ping(gomock.Any()).Return(errors.New("down"))
	s.ErrorIs(s.svc.Ping(s.ctx), ErrUpstream)
}

func TestValidationErrorWithoutFieldErrors(t *testing.T) {
	err := validationError(errors.New("boom"))
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorContains(t, err, "boom")
}

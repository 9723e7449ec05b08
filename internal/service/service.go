package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when the requested card does not exist
	ErrNotFound = errors.New("card not found")
	// ErrInvalidInput is returned when a payload fails a service precondition
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream is returned when the record store fails
	ErrUpstream = errors.New("upstream failure")
)

// BinLookup resolves BIN enrichment data. Implementations never fail.
type BinLookup interface {
	Lookup(ctx context.Context, raw string) models.BinInfo
}

// SweepReporter is notified after a duplicate sweep changed or failed to change the store
type SweepReporter interface {
	SendSweepReport(ctx context.Context, result models.DedupResult) error
}

// Service handles business logic
type Service struct {
	repo     repository.CardStore
	bins     BinLookup
	reporter SweepReporter
	log      *logrus.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	// rules maps a card column to the validate tag CardCreate applies to it
	rules map[string]string
}

// NewService initializes a new service. reporter may be nil.
func NewService(repo repository.CardStore, bins BinLookup, reporter SweepReporter, log *logrus.Logger, m *metrics.Metrics) *Service {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:     repo,
		bins:     bins,
		reporter: reporter,
		log:      log,
		metrics:  m,
		validate: validate,
		rules:    fieldRules(models.CardCreate{}),
	}
}

// fieldRules collects the validate tag of every field of v keyed by its json name
func fieldRules(v any) map[string]string {
	t := reflect.TypeOf(v)
	rules := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag := f.Tag.Get("validate"); name != "" && tag != "" {
			rules[name] = tag
		}
	}
	return rules
}

// storeError maps a repository error onto the service error taxonomy
func (s *Service) storeError(op string, err error) error {
	if errors.Is(err, repository.ErrCardNotFound) {
		return ErrNotFound
	}
	s.log.WithError(err).Errorf("Store failure during %s", op)
	return fmt.Errorf("%w: failed to %s: %w", ErrUpstream, op, err)
}

// ListCards returns all cards, most recently created first
func (s *Service) ListCards(ctx context.Context) ([]models.Card, error) {
	cards, err := s.repo.ListCards(ctx)
	if err != nil {
		return nil, s.storeError("list cards", err)
	}
	return cards, nil
}

// GetCard returns a single card
func (s *Service) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, s.storeError("get card", err)
	}
	return card, nil
}

// CreateCard validates and stores a new card
func (s *Service) CreateCard(ctx context.Context, req models.CardCreate) (*models.Card, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	card := &models.Card{
		CardNumber:     req.CardNumber,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CVV:            req.CVV,
		CardholderName: req.CardholderName,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, s.storeError("create card", err)
	}

	s.log.Infof("Card %d created (%s)", card.ID, utils.MaskCardNumber(card.CardNumber))
	return card, nil
}

// UpdateCard applies the fields present in req and returns the full card
func (s *Service) UpdateCard(ctx context.Context, id int64, req models.CardUpdate) (*models.Card, error) {
	fields := []struct {
		column string
		value  models.Optional[string]
	}{
		{repository.ColumnCardNumber, req.CardNumber},
		{repository.ColumnExpiryMonth, req.ExpiryMonth},
		{repository.ColumnExpiryYear, req.ExpiryYear},
		{repository.ColumnCVV, req.CVV},
		{repository.ColumnCardholderName, req.CardholderName},
	}

	var changes []repository.Change
	var msgs []string
	for _, f := range fields {
		if !f.value.Set {
			continue
		}
		if f.value.IsNull() {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidInput, f.column)
		}
		if err := s.validate.Var(*f.value.Value, s.rules[f.column]); err != nil {
			msgs = append(msgs, fieldMessages(f.column, err)...)
			continue
		}
		changes = append(changes, repository.Change{Column: f.column, Value: *f.value.Value})
	}
	if len(msgs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}

	card, err := s.repo.UpdateCard(ctx, id, changes)
	if err != nil {
		return nil, s.storeError("update card", err)
	}

	if len(changes) > 0 {
		s.log.Infof("Card %d updated (%d fields)", id, len(changes))
	}
	return card, nil
}

// UpdateStatus applies is_live and tested_at when present.
// An explicit null clears the field; a payload with neither field is rejected.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req models.StatusUpdate) (*models.Card, error) {
	if req.Empty() {
		return nil, fmt.Errorf("%w: no status fields to update", ErrInvalidInput)
	}

	var changes []repository.Change
	if req.IsLive.Set {
		changes = append(changes, repository.Change{Column: repository.ColumnIsLive, Value: req.IsLive.Value})
	}
	if req.TestedAt.Set {
		changes = append(changes, repository.Change{Column: repository.ColumnTestedAt, Value: req.TestedAt.Value})
	}

	card, err := s.repo.UpdateCard(ctx, id, changes)
	if err != nil {
		return nil, s.storeError("update card status", err)
	}

	s.log.Infof("Card %d status updated", id)
	return card, nil
}

// DeleteCard removes a card
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return s.storeError("delete card", err)
	}
	s.log.Infof("Card %d deleted", id)
	return nil
}

// LookupBin returns BIN enrichment for a partial card number
func (s *Service) LookupBin(ctx context.Context, raw string) models.BinInfo {
	return s.bins.Lookup(ctx, raw)
}

// Ping reports whether the record store is reachable
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe.Field(), fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

// fieldMessages describes the failures of a single-value validation of field
func fieldMessages(field string, err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{field + " is invalid"}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(field, fe))
	}
	return msgs
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

package repository

//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks CardStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// ErrCardNotFound is returned when no card has the requested id
var ErrCardNotFound = errors.New("card not found")

// Updatable columns of credit_card_transactions
const (
	ColumnCardNumber     = "card_number"
	ColumnExpiryMonth    = "expiry_month"
	ColumnExpiryYear     = "expiry_year"
	ColumnCVV            = "cvv"
	ColumnCardholderName = "cardholder_name"
	ColumnIsLive         = "is_live"
	ColumnTestedAt       = "tested_at"
)

var updatableColumns = map[string]bool{
	ColumnCardNumber:     true,
	ColumnExpiryMonth:    true,
	ColumnExpiryYear:     true,
	ColumnCVV:            true,
	ColumnCardholderName: true,
	ColumnIsLive:         true,
	ColumnTestedAt:       true,
}

const cardColumns = `id, card_number, expiry_month, expiry_year, cvv, cardholder_name, is_live, tested_at`

// Change sets Column to Value. A nil Value writes NULL.
type Change struct {
	Column string
	Value  any
}

// CardStore is the record store used by the card service
type CardStore interface {
	ListCards(ctx context.Context) ([]models.Card, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, id int64, changes []Change) (*models.Card, error)
	DeleteCard(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Repository provides database operations
type Repository struct {
	db      *sql.DB
	timeout time.Duration
}

var _ CardStore = (*Repository)(nil)

// NewRepository initializes a new repository.
// Every call is bounded by timeout.
func NewRepository(db *sql.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var isLive sql.NullBool
	var testedAt sql.NullString
	err := row.Scan(&card.ID, &card.CardNumber, &card.ExpiryMonth, &card.ExpiryYear,
		&card.CVV, &card.CardholderName, &isLive, &testedAt)
	if err != nil {
		return nil, err
	}
	if isLive.Valid {
		card.IsLive = &isLive.Bool
	}
	if testedAt.Valid {
		card.TestedAt = &testedAt.String
	}
	return card, nil
}

// ListCards returns all cards, most recently created first
func (r *Repository) ListCards(ctx context.Context) ([]models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + cardColumns + ` FROM credit_card_transactions ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// GetCard retrieves a card by id
func (r *Repository) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + cardColumns + ` FROM credit_card_transactions WHERE id = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// CreateCard inserts a card and sets its ID
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO credit_card_transactions (card_number, expiry_month, expiry_year, cvv, cardholder_name, is_live, tested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, card.CardNumber, card.ExpiryMonth, card.ExpiryYear,
		card.CVV, card.CardholderName, card.IsLive, card.TestedAt).Scan(&card.ID)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// UpdateCard applies changes to a card and returns the stored result.
// With no changes it returns the card as stored.
func (r *Repository) UpdateCard(ctx context.Context, id int64, changes []Change) (*models.Card, error) {
	if len(changes) == 0 {
		return r.GetCard(ctx, id)
	}

	sets := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	for i, change := range changes {
		if !updatableColumns[change.Column] {
			return nil, fmt.Errorf("failed to update card: unknown column %q", change.Column)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", change.Column, i+1))
		args = append(args, change.Value)
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE credit_card_transactions SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), cardColumns)
	card, err := scanCard(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	return card, nil
}

// DeleteCard removes a card by id
func (r *Repository) DeleteCard(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM credit_card_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if affected == 0 {
		return ErrCardNotFound
	}
	return nil
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

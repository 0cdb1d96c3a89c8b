package memory

import (
	"context"
	"sync"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/storage"
	"github.com/shopspring/decimal"
)

// Store keeps users and ledgers in process memory. Nothing survives a restart.
type Store struct {
	mu      sync.Mutex
	lastID  int64
	order   []int64 // user ids in creation order
	users   map[int64]models.User
	ledgers map[int64][]models.LedgerEntry
}

func New() *Store {
	return &Store{
		users:   make(map[int64]models.User),
		ledgers: make(map[int64][]models.LedgerEntry),
	}
}

func (s *Store) SaveUser(ctx context.Context, user models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	user.ID = s.lastID
	s.users[user.ID] = user
	s.ledgers[user.ID] = make([]models.LedgerEntry, 0)
	s.order = append(s.order, user.ID)

	return user.ID, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}
	current.Name = user.Name
	current.Address = user.Address
	current.Phone = user.Phone
	s.users[user.ID] = current

	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, userID)
	delete(s.ledgers, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

func (s *Store) AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[entry.UserID]
	if !ok {
		return models.LedgerEntry{}, decimal.Zero, storage.ErrUserNotFound
	}

	balance := models.Sum(ledger).Add(entry.Amount)
	if balance.IsNegative() {
		return models.LedgerEntry{}, decimal.Zero, storage.ErrInsufficientFunds
	}

	entry.ID = int64(len(ledger)) + 1
	s.ledgers[entry.UserID] = append(ledger, entry)

	return entry, balance, nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return decimal.Zero, storage.ErrUserNotFound
	}
	return models.Sum(ledger), nil
}

// Entries returns a copy so callers cannot modify the stored ledger.
func (s *Store) Entries(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := make([]models.LedgerEntry, len(ledger))
	copy(copied, ledger)
	return copied, nil
}

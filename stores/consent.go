package stores

import (
	"sync"

	"github.com/obfin/openfinance/models"
)

// ConsentStore is the in-memory ConsentPort implementation. Consents are
// authorised by an upstream flow and loaded here read-mostly; the only
// mutation this core performs is a status transition on revocation.
type ConsentStore struct {
	mu       sync.RWMutex
	consents map[string]*models.ConsentContext
}

func CreateConsentStore() *ConsentStore {
	return &ConsentStore{
		consents: make(map[string]*models.ConsentContext),
	}
}

func (s *ConsentStore) FindByID(id string) *models.ConsentContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	consent, ok := s.consents[id]
	if !ok {
		return nil
	}
	copied := *consent
	return &copied
}

func (s *ConsentStore) Save(consent *models.ConsentContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *consent
	s.consents[consent.ID] = &copied
}

func (s *ConsentStore) UpdateStatus(id string, status models.ConsentStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	consent, ok := s.consents[id]
	if !ok {
		return false
	}
	consent.Status = status
	return true
}

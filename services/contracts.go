package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/models"
)

// Contract is what the ledger needs to know about a platform contract.
type Contract struct {
	ID       uint
	ClientID uint
	WorkerID *uint
	Status   string
}

// ContractLookup resolves contracts owned by the platform.
type ContractLookup interface {
	GetContract(ctx context.Context, tenantID string, contractID uint) (Contract, error)
}

// ContractStore reads the platform's contracts table.
type ContractStore struct {
	db *gorm.DB
}

// NewContractStore returns a ContractLookup backed by db.
func NewContractStore(db *gorm.DB) *ContractStore {
	return &ContractStore{db: db}
}

// GetContract returns a NotFound error for unknown or foreign-tenant contracts.
func (s *ContractStore) GetContract(ctx context.Context, tenantID string, contractID uint) (Contract, error) {
	var ref models.ContractRef
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, contractID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Contract{}, apperrors.NotFound("contract.get", "contract %d not found", contractID)
	}
	if err != nil {
		return Contract{}, apperrors.Transient("contract.get", err)
	}
	return Contract{ID: ref.ID, ClientID: ref.ClientID, WorkerID: ref.WorkerID, Status: ref.Status}, nil
}

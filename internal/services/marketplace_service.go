// internal/services/marketplace_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/registry"
	"github.com/javajoker/authchain/internal/utils"
)

var (
	ErrWorkNotFound    = errors.New("work not found")
	ErrLicenseNotFound = errors.New("license not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// isoMillis matches the millisecond ISO 8601 form browsers produce.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type MarketplaceService struct {
	contract ledger.Contract
	ids      *ledger.Identities
	log      logrus.FieldLogger
}

type RegisterWorkRequest struct {
	Title    string `json:"title" validate:"required"`
	IPFSHash string `json:"ipfsHash" validate:"required"`
	Metadata string `json:"metadata" validate:"required"`
}

// CreateLicenseRequest accepts numbers or numeric strings for every numeric
// field. Price is in ether.
type CreateLicenseRequest struct {
	WorkID    json.Number `json:"workId" validate:"required"`
	Price     json.Number `json:"price" validate:"required,ether_amount"`
	Duration  json.Number `json:"duration" validate:"required"`
	UsageType string      `json:"usageType" validate:"required"`
}

func NewMarketplaceService(contract ledger.Contract, ids *ledger.Identities, logger logrus.FieldLogger) *MarketplaceService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MarketplaceService{
		contract: contract,
		ids:      ids,
		log:      logger.WithField("service", "marketplace"),
	}
}

func (s *MarketplaceService) GetWork(ctx context.Context, id uint64) (*models.WorkResponse, error) {
	work, err := s.contract.GetWork(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get work %d: %w", id, err)
	}
	if !work.Exists() {
		return nil, ErrWorkNotFound
	}
	resp := toWorkResponse(work)
	return &resp, nil
}

func (s *MarketplaceService) RegisterWork(ctx context.Context, req *RegisterWorkRequest) (*ledger.Receipt, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.log.WithField("title", req.Title).Info("Registering work")
	receipt, err := s.contract.RegisterWork(ctx, s.ids.Creator, req.Title, req.IPFSHash, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to register work: %w", err)
	}
	return receipt, nil
}

func (s *MarketplaceService) CreateLicense(ctx context.Context, req *CreateLicenseRequest) (*ledger.Receipt, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	workID, err := strconv.ParseUint(req.WorkID.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: workId %q", ErrInvalidRequest, req.WorkID)
	}
	duration, err := strconv.ParseUint(req.Duration.String(), 10, 64)
	if err != nil || duration == 0 {
		return nil, fmt.Errorf("%w: duration %q", ErrInvalidRequest, req.Duration)
	}
	price, err := ledger.ParseEther(req.Price.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.log.WithFields(logrus.Fields{
		"work_id": workID,
		"price":   req.Price.String(),
	}).Info("Creating license")

	receipt, err := s.contract.CreateLicense(ctx, s.ids.Creator, workID, price, duration, req.UsageType)
	if err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}
	return receipt, nil
}

// PurchaseLicense pays exactly the on-chain price of the license as the
// purchaser identity.
func (s *MarketplaceService) PurchaseLicense(ctx context.Context, licenseID uint64) (*ledger.Receipt, error) {
	license, err := s.contract.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get license %d: %w", licenseID, err)
	}
	if !license.Exists() {
		return nil, ErrLicenseNotFound
	}

	s.log.WithFields(logrus.Fields{
		"license_id": licenseID,
		"price_wei":  license.Price.String(),
	}).Info("Purchasing license")

	receipt, err := s.contract.PurchaseLicense(ctx, s.ids.Purchaser, licenseID, license.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to purchase license: %w", err)
	}
	return receipt, nil
}

func (s *MarketplaceService) GetCreatorWorks(ctx context.Context, creator common.Address) ([]models.WorkResponse, error) {
	ids, err := s.contract.GetCreatorWorks(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to get works of %s: %w", creator.Hex(), err)
	}

	works := make([]models.WorkResponse, 0, len(ids))
	for _, id := range ids {
		work, err := s.contract.GetWork(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get work %d: %w", id, err)
		}
		works = append(works, toWorkResponse(work))
	}
	return works, nil
}

// ListWorks walks ids 1 .. getWorkCount()-1. The count is the next id to be
// assigned, not the number of works.
func (s *MarketplaceService) ListWorks(ctx context.Context) ([]models.WorkListing, error) {
	next, err := s.contract.GetWorkCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get work count: %w", err)
	}

	listings := make([]models.WorkListing, 0)
	for id := uint64(1); id < next; id++ {
		work, err := s.contract.GetWork(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get work %d: %w", id, err)
		}
		if !work.Exists() {
			continue
		}
		licenseIDs, err := s.contract.GetWorkLicenses(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get licenses of work %d: %w", id, err)
		}
		listings = append(listings, models.WorkListing{
			ID:         strconv.FormatUint(work.ID, 10),
			Title:      work.Title,
			IPFSHash:   work.IPFSHash,
			Metadata:   work.Metadata,
			LicenseIDs: formatIDs(licenseIDs),
		})
	}
	return listings, nil
}

func (s *MarketplaceService) GetLicense(ctx context.Context, id uint64) (*models.LicenseResponse, error) {
	license, err := s.contract.GetLicense(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get license %d: %w", id, err)
	}
	if !license.Exists() {
		return nil, ErrLicenseNotFound
	}
	resp := toLicenseResponse(license)
	return &resp, nil
}

func (s *MarketplaceService) GetWorkLicenses(ctx context.Context, workID uint64) ([]models.LicenseResponse, error) {
	work, err := s.contract.GetWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("failed to get work %d: %w", workID, err)
	}
	if !work.Exists() {
		return nil, ErrWorkNotFound
	}

	ids, err := s.contract.GetWorkLicenses(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("failed to get licenses of work %d: %w", workID, err)
	}

	licenses := make([]models.LicenseResponse, 0, len(ids))
	for _, id := range ids {
		license, err := s.contract.GetLicense(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get license %d: %w", id, err)
		}
		licenses = append(licenses, toLicenseResponse(license))
	}
	return licenses, nil
}

func (s *MarketplaceService) Balance(ctx context.Context, account common.Address) (*models.BalanceResponse, error) {
	wei, err := s.contract.BalanceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account.Hex(), err)
	}
	return &models.BalanceResponse{
		Address:    account.Hex(),
		Balance:    ledger.FormatEther(wei),
		BalanceWei: wei.String(),
	}, nil
}

func (s *MarketplaceService) RegistryInfo(ctx context.Context) (*models.RegistryInfo, error) {
	owner, err := s.contract.Owner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	next, err := s.contract.GetWorkCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get work count: %w", err)
	}
	return &models.RegistryInfo{
		Owner:     owner.Hex(),
		WorkCount: strconv.FormatUint(next, 10),
		Backend:   s.contract.Backend(),
	}, nil
}

// Withdraw moves the residual contract balance to the owner identity.
func (s *MarketplaceService) Withdraw(ctx context.Context) (*ledger.Receipt, error) {
	receipt, err := s.contract.Withdraw(ctx, s.ids.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}
	return receipt, nil
}

// IsRevert reports whether err carries a reason raised by the registry.
func IsRevert(err error) bool {
	_, ok := registry.ReasonOf(err)
	return ok
}

func toWorkResponse(w registry.Work) models.WorkResponse {
	return models.WorkResponse{
		ID:        strconv.FormatUint(w.ID, 10),
		Creator:   w.Creator.Hex(),
		Title:     w.Title,
		IPFSHash:  w.IPFSHash,
		Metadata:  w.Metadata,
		Timestamp: time.Unix(int64(w.Timestamp), 0).UTC().Format(isoMillis),
	}
}

func toLicenseResponse(l registry.License) models.LicenseResponse {
	resp := models.LicenseResponse{
		ID:        strconv.FormatUint(l.ID, 10),
		WorkID:    strconv.FormatUint(l.WorkID, 10),
		Price:     ledger.FormatEther(l.Price),
		PriceWei:  l.Price.String(),
		Duration:  strconv.FormatUint(l.Duration, 10),
		UsageType: l.UsageType,
		Active:    l.Active,
	}
	if l.Active {
		resp.Licensee = l.Licensee.Hex()
	}
	return resp
}

func formatIDs(ids []uint64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(id, 10))
	}
	return out
}

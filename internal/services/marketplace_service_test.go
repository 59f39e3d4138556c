package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/registry"
)

type MarketplaceServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	ids     *ledger.Identities
	ledger  *ledger.LocalLedger
	service *MarketplaceService
}

func (s *MarketplaceServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	ids, err := ledger.NewIdentities("", "", "", false)
	s.Require().NoError(err)
	s.ids = ids

	funds, _ := ledger.ParseEther("10")
	logger, _ := test.NewNullLogger()
	l, err := ledger.NewLocalLedger(s.ctx, ledger.LocalOptions{
		Owner: ids.Owner.Address,
		Genesis: map[common.Address]*big.Int{
			ids.Creator.Address:   funds,
			ids.Purchaser.Address: funds,
		},
		Clock:  func() time.Time { return time.Unix(1700000000, 0) },
		Logger: logger,
	})
	s.Require().NoError(err)
	s.ledger = l
	s.service = NewMarketplaceService(l, ids, logger)
}

func (s *MarketplaceServiceTestSuite) registerTestWork() {
	_, err := s.service.RegisterWork(s.ctx, &RegisterWorkRequest{
		Title:    "Test Work",
		IPFSHash: "QmTestHash123",
		Metadata: "type: music, genre: classical",
	})
	s.Require().NoError(err)
}

func (s *MarketplaceServiceTestSuite) createTestLicense(workID, price string) {
	_, err := s.service.CreateLicense(s.ctx, &CreateLicenseRequest{
		WorkID:    json.Number(workID),
		Price:     json.Number(price),
		Duration:  "86400",
		UsageType: "commercial",
	})
	s.Require().NoError(err)
}

func (s *MarketplaceServiceTestSuite) TestGetWorkFormatsFields() {
	s.registerTestWork()

	work, err := s.service.GetWork(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("1", work.ID)
	s.Equal(s.ids.Creator.Address.Hex(), work.Creator)
	s.Equal("Test Work", work.Title)
	s.Equal("2023-11-14T22:13:20.000Z", work.Timestamp)
}

func (s *MarketplaceServiceTestSuite) TestGetWorkSentinelIsNotFound() {
	_, err := s.service.GetWork(s.ctx, 999)
	s.ErrorIs(err, ErrWorkNotFound)

	_, err = s.service.GetLicense(s.ctx, 999)
	s.ErrorIs(err, ErrLicenseNotFound)

	_, err = s.service.PurchaseLicense(s.ctx, 999)
	s.ErrorIs(err, ErrLicenseNotFound)
}

func (s *MarketplaceServiceTestSuite) TestRegisterWorkRequiresFields() {
	_, err := s.service.RegisterWork(s.ctx, &RegisterWorkRequest{Title: "Only title"})
	s.ErrorIs(err, ErrInvalidRequest)

	count, _ := s.ledger.GetWorkCount(s.ctx)
	s.Equal(uint64(1), count)
}

func (s *MarketplaceServiceTestSuite) TestCreateLicenseConvertsPrice() {
	s.registerTestWork()
	s.createTestLicense("1", "0.1")

	license, err := s.service.GetLicense(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("0.1", license.Price)
	s.Equal("100000000000000000", license.PriceWei)
	s.Equal("86400", license.Duration)
	s.False(license.Active)
	s.Empty(license.Licensee)
}

func (s *MarketplaceServiceTestSuite) TestCreateLicenseRejectsBadInput() {
	s.registerTestWork()

	cases := []CreateLicenseRequest{
		{WorkID: "1", Price: "0.1", Duration: "86400"},
		{WorkID: "1", Price: "abc", Duration: "86400", UsageType: "commercial"},
		{WorkID: "1", Price: "0.1", Duration: "0", UsageType: "commercial"},
		{WorkID: "-1", Price: "0.1", Duration: "86400", UsageType: "commercial"},
	}
	for _, req := range cases {
		req := req
		_, err := s.service.CreateLicense(s.ctx, &req)
		s.ErrorIs(err, ErrInvalidRequest, "%+v", req)
	}
}

func (s *MarketplaceServiceTestSuite) TestCreateLicenseForMissingWorkReverts() {
	_, err := s.service.CreateLicense(s.ctx, &CreateLicenseRequest{
		WorkID: "7", Price: "1", Duration: "60", UsageType: "commercial",
	})
	s.ErrorIs(err, registry.ErrNotFound)
	s.True(IsRevert(err))
}

func (s *MarketplaceServiceTestSuite) TestPurchasePaysCreator() {
	s.registerTestWork()
	s.createTestLicense("1", "0.1")

	before, _ := s.service.Balance(s.ctx, s.ids.Creator.Address)
	_, err := s.service.PurchaseLicense(s.ctx, 1)
	s.Require().NoError(err)
	after, _ := s.service.Balance(s.ctx, s.ids.Creator.Address)

	s.Equal("10", before.Balance)
	s.Equal("10.1", after.Balance)

	license, err := s.service.GetLicense(s.ctx, 1)
	s.Require().NoError(err)
	s.True(license.Active)
	s.Equal(s.ids.Purchaser.Address.Hex(), license.Licensee)

	_, err = s.service.PurchaseLicense(s.ctx, 1)
	s.ErrorIs(err, registry.ErrAlreadyActive)
}

func (s *MarketplaceServiceTestSuite) TestListWorksUsesNextIDConvention() {
	listings, err := s.service.ListWorks(s.ctx)
	s.Require().NoError(err)
	s.NotNil(listings)
	s.Empty(listings)

	s.registerTestWork()
	s.registerTestWork()
	s.createTestLicense("2", "1")
	s.createTestLicense("2", "2")

	listings, err = s.service.ListWorks(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listings, 2)
	s.Equal("1", listings[0].ID)
	s.Empty(listings[0].LicenseIDs)
	s.Equal([]string{"1", "2"}, listings[1].LicenseIDs)

	info, err := s.service.RegistryInfo(s.ctx)
	s.Require().NoError(err)
	s.Equal("3", info.WorkCount)
	s.Equal(ledger.BackendLocal, info.Backend)
	s.Equal(s.ids.Owner.Address.Hex(), info.Owner)
}

func (s *MarketplaceServiceTestSuite) TestCreatorWorksAndWorkLicenses() {
	works, err := s.service.GetCreatorWorks(s.ctx, s.ids.Purchaser.Address)
	s.Require().NoError(err)
	s.NotNil(works)
	s.Empty(works)

	s.registerTestWork()
	s.createTestLicense("1", "0.5")

	works, err = s.service.GetCreatorWorks(s.ctx, s.ids.Creator.Address)
	s.Require().NoError(err)
	s.Require().Len(works, 1)
	s.Equal("QmTestHash123", works[0].IPFSHash)

	licenses, err := s.service.GetWorkLicenses(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(licenses, 1)
	s.Equal("0.5", licenses[0].Price)

	_, err = s.service.GetWorkLicenses(s.ctx, 42)
	s.ErrorIs(err, ErrWorkNotFound)
}

func (s *MarketplaceServiceTestSuite) TestWithdrawAsOwner() {
	receipt, err := s.service.Withdraw(s.ctx)
	s.Require().NoError(err)
	s.Contains(receipt.Events, registry.EventWithdrawn)
}

func (s *MarketplaceServiceTestSuite) TestTransportErrorIsNotRevert() {
	svc := NewMarketplaceService(brokenContract{s.ledger}, s.ids, nil)
	_, err := svc.ListWorks(s.ctx)
	s.ErrorIs(err, ledger.ErrTransport)
	s.False(IsRevert(err))
}

func TestMarketplaceServiceSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceServiceTestSuite))
}

// brokenContract fails every work count query as an unreachable node would.
type brokenContract struct {
	ledger.Contract
}

func (brokenContract) GetWorkCount(ctx context.Context) (uint64, error) {
	return 0, errors.Join(ledger.ErrTransport, errors.New("connection refused"))
}

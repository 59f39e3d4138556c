package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/authchain/internal/config"
	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/router"
	"github.com/javajoker/authchain/internal/services"
)

// apiSuite runs the whole facade over an in-process ledger.
type apiSuite struct {
	suite.Suite
	ids    *ledger.Identities
	ledger *ledger.LocalLedger
	store  *services.MemoryContentStore
	router *gin.Engine
	stop   func()
}

func (s *apiSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *apiSuite) SetupTest() {
	ids, err := ledger.NewIdentities("", "", "", false)
	s.Require().NoError(err)
	s.ids = ids

	funds, _ := ledger.ParseEther("10")
	logger, _ := test.NewNullLogger()
	l, err := ledger.NewLocalLedger(context.Background(), ledger.LocalOptions{
		Owner: ids.Owner.Address,
		Genesis: map[common.Address]*big.Int{
			ids.Creator.Address:   new(big.Int).Set(funds),
			ids.Purchaser.Address: new(big.Int).Set(funds),
			ids.Owner.Address:     new(big.Int).Set(funds),
		},
		Clock:  func() time.Time { return time.Unix(1700000000, 0) },
		Logger: logger,
	})
	s.Require().NoError(err)
	s.ledger = l
	s.store = services.NewMemoryContentStore()

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 1},
		Ledger:      config.LedgerConfig{Backend: ledger.BackendLocal},
		Content: config.ContentConfig{
			Backend:      "memory",
			MaxSize:      1024,
			AllowedTypes: []string{".mp3", ".png"},
		},
		I18n:     config.I18nConfig{DefaultLocale: "en"},
		Frontend: config.FrontendConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}

	marketplace := services.NewMarketplaceService(l, ids, logger)
	content := services.NewContentService(s.store, marketplace, services.UploadOptions{
		MaxSize:      cfg.Content.MaxSize,
		AllowedTypes: cfg.Content.AllowedTypes,
	}, logger)

	s.router, s.stop = router.Initialize(cfg, router.Dependencies{
		Marketplace: marketplace,
		Content:     content,
		Identities:  services.NewMockIdentityProvider(ids, 1),
		Logger:      logger,
	})
}

func (s *apiSuite) TearDownTest() {
	s.stop()
}

func (s *apiSuite) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) upload(path, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range fields {
		s.Require().NoError(form.WriteField(k, v))
	}
	if filename != "" {
		part, err := form.CreateFormFile("file", filename)
		s.Require().NoError(err)
		_, err = part.Write(data)
		s.Require().NoError(err)
	}
	s.Require().NoError(form.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", form.FormDataContentType())

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *apiSuite) message(w *httptest.ResponseRecorder) string {
	var body map[string]interface{}
	s.decode(w, &body)
	msg, _ := body["message"].(string)
	return msg
}

func (s *apiSuite) registerWork(title string) {
	w := s.do(http.MethodPost, "/api/works", map[string]string{
		"title":    title,
		"ipfsHash": "QmTestHash123",
		"metadata": "type: music, genre: classical",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
}

func (s *apiSuite) createLicense(workID int, price string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/licenses", map[string]interface{}{
		"workId":    workID,
		"price":     price,
		"duration":  86400,
		"usageType": "commercial",
	})
}

func (s *apiSuite) login(role string) string {
	w := s.do(http.MethodPost, "/api/auth/login", map[string]string{"role": role})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	s.decode(w, &body)
	return body.Token
}

// internal/services/content_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/config"
	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/utils"
)

var (
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrContentNotFound    = errors.New("content not found")
)

// ContentStore puts bytes into off-chain storage and returns their content
// address. Stored content is never linked transactionally to the ledger.
type ContentStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Backend() models.ContentBackend
}

func NewContentStore(cfg *config.Config) (ContentStore, error) {
	switch models.ContentBackend(cfg.Content.Backend) {
	case models.ContentBackendMemory:
		return NewMemoryContentStore(), nil
	case models.ContentBackendS3:
		return NewS3ContentStore(cfg.AWS)
	case models.ContentBackendPinata:
		return NewPinataContentStore(cfg.Pinata, nil), nil
	}
	return nil, fmt.Errorf("unsupported content backend %q", cfg.Content.Backend)
}

// MemoryContentStore keeps content in process, addressed by its SHA-256.
type MemoryContentStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{objects: make(map[string][]byte)}
}

func (m *MemoryContentStore) Backend() models.ContentBackend {
	return models.ContentBackendMemory
}

func (m *MemoryContentStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	address := "sha256-" + utils.HashBytes(data)

	m.mu.Lock()
	m.objects[address] = append([]byte(nil), data...)
	m.mu.Unlock()
	return address, nil
}

func (m *MemoryContentStore) Get(address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[address]
	if !ok {
		return nil, ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

type S3ContentStore struct {
	client s3iface.S3API
	bucket string
	folder string
	now    func() time.Time
}

func NewS3ContentStore(cfg config.AWSConfig) (*S3ContentStore, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		// S3-compatible stores such as MinIO
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3ContentStoreWithClient(s3.New(sess), cfg.S3Bucket), nil
}

func NewS3ContentStoreWithClient(client s3iface.S3API, bucket string) *S3ContentStore {
	return &S3ContentStore{client: client, bucket: bucket, folder: "works", now: time.Now}
}

func (s *S3ContentStore) Backend() models.ContentBackend {
	return models.ContentBackendS3
}

func (s *S3ContentStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.objectKey(name)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(http.DetectContentType(data)),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]*string{
			"Sha256": aws.String(utils.HashBytes(data)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3ContentStore) objectKey(name string) string {
	id := uuid.New()
	filename := fmt.Sprintf("%s_%s%s", s.now().Format("20060102"), id.String()[:8], strings.ToLower(filepath.Ext(name)))
	return s.folder + "/" + filename
}

// PinataContentStore pins files to IPFS through the Pinata API.
type PinataContentStore struct {
	apiURL    string
	apiKey    string
	secretKey string
	client    *http.Client
}

func NewPinataContentStore(cfg config.PinataConfig, client *http.Client) *PinataContentStore {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &PinataContentStore{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:    cfg.APIKey,
		secretKey: cfg.SecretKey,
		client:    client,
	}
}

func (p *PinataContentStore) Backend() models.ContentBackend {
	return models.ContentBackendPinata
}

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func (p *PinataContentStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to pin file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("pinata returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pinataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pinata response has no IpfsHash")
	}
	return out.IpfsHash, nil
}

type UploadOptions struct {
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

// ContentService validates uploads, stores them, and optionally registers
// the stored content as a work.
type ContentService struct {
	store       ContentStore
	marketplace *MarketplaceService
	options     UploadOptions
	log         logrus.FieldLogger
}

func NewContentService(store ContentStore, marketplace *MarketplaceService, options UploadOptions, logger logrus.FieldLogger) *ContentService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ContentService{
		store:       store,
		marketplace: marketplace,
		options:     options,
		log:         logger.WithFields(logrus.Fields{"service": "content", "backend": store.Backend()}),
	}
}

func (s *ContentService) Options() UploadOptions {
	return s.options
}

func (s *ContentService) Upload(ctx context.Context, header *multipart.FileHeader) (string, error) {
	if s.options.MaxSize > 0 && header.Size > s.options.MaxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, header.Size)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if len(s.options.AllowedTypes) > 0 {
		allowed := false
		for _, allowedType := range s.options.AllowedTypes {
			if ext == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, ext)
		}
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	address, err := s.store.Put(ctx, header.Filename, data)
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"file":    header.Filename,
		"size":    len(data),
		"address": address,
	}).Info("Content stored")
	return address, nil
}

// Publish uploads the file and registers it as a work. The two steps are not
// atomic: when registration fails the stored content stays orphaned and is
// logged with its address.
func (s *ContentService) Publish(ctx context.Context, header *multipart.FileHeader, title, metadata string) (string, *ledger.Receipt, error) {
	req := &RegisterWorkRequest{
		Title:    utils.StripMarkup(title),
		IPFSHash: "-",
		Metadata: utils.StripMarkup(metadata),
	}
	if err := utils.ValidateStruct(req); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	address, err := s.Upload(ctx, header)
	if err != nil {
		return "", nil, err
	}

	req.IPFSHash = address
	receipt, err := s.marketplace.RegisterWork(ctx, req)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"address": address,
			"title":   req.Title,
		}).WithError(err).Warn("Registration failed; stored content is orphaned")
		return address, nil, err
	}
	return address, receipt, nil
}

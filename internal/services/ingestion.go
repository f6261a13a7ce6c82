package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

// ResourceUpload describes the transient local copy of one uploaded file. The
// pipeline owns TempPath from the moment IngestResource is called and removes
// it on every exit path.
type ResourceUpload struct {
	TempPath     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	MediaKind    string
}

type IngestStatus string

const (
	IngestAccepted          IngestStatus = "accepted"
	IngestRejectedQuality   IngestStatus = "rejected_low_quality"
	IngestRejectedRelevance IngestStatus = "rejected_relevance"
)

// ReasonLowQuality is the fixed reason code for quality-gate rejections.
const ReasonLowQuality = "low_quality"

// IngestResult is the caller-facing outcome. Exactly one of the three states
// applies; Resource is set only for accepted. Rejections are never errors.
type IngestResult struct {
	Status   IngestStatus    `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Resource *types.Resource `json:"resource,omitempty"`
}

type IngestionService interface {
	IngestResource(ctx context.Context, userID uuid.UUID, upload ResourceUpload) (*IngestResult, error)
}

type ingestionService struct {
	db              *gorm.DB
	log             *logger.Logger
	textExtract     TextExtractService
	metadataService MetadataService
	relevance       RelevanceService
	bucketService   BucketService
	resourceRepo    repos.ResourceRepo
	pointsService   PointsService
	uploadReward    int
}

func NewIngestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	textExtract TextExtractService,
	metadataService MetadataService,
	relevance RelevanceService,
	bucketService BucketService,
	resourceRepo repos.ResourceRepo,
	pointsService PointsService,
) IngestionService {
	serviceLog := baseLog.With("service", "IngestionService")
	uploadReward := utils.GetEnvAsInt("RESOURCE_UPLOAD_POINTS", 50, baseLog)
	return &ingestionService{
		db:              db,
		log:             serviceLog,
		textExtract:     textExtract,
		metadataService: metadataService,
		relevance:       relevance,
		bucketService:   bucketService,
		resourceRepo:    resourceRepo,
		pointsService:   pointsService,
		uploadReward:    uploadReward,
	}
}

// tempCleanup deletes the transient upload exactly once. Safe to call after
// the file is already gone, and a cleanup failure is logged instead of
// replacing the pipeline's actual outcome.
type tempCleanup struct {
	once sync.Once
	path string
	log  *logger.Logger
}

func (t *tempCleanup) Run() {
	t.once.Do(func() {
		if t.path == "" {
			return
		}
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			t.log.Error("Failed to remove temp upload", "path", t.path, "error", err)
		}
	})
}

// IngestResource runs the full pipeline: extract text, infer metadata, gate on
// quality, resolve the title, gate on relevance, commit to durable storage,
// persist the resource and credit the uploader. No durable write happens
// before both gates pass.
func (s *ingestionService) IngestResource(ctx context.Context, userID uuid.UUID, upload ResourceUpload) (*IngestResult, error) {
	cleanup := &tempCleanup{path: upload.TempPath, log: s.log}
	defer cleanup.Run()

	data, err := os.ReadFile(upload.TempPath)
	if err != nil {
		return nil, fmt.Errorf("read temp upload: %w", err)
	}

	// 1) Extract text (non-fatal; empty text just starves the gates of signal)
	extracted := s.textExtract.Extract(ctx, upload.MediaKind, upload.OriginalName, upload.MimeType, data)

	// 2) Infer metadata (never fails; falls back to the default record)
	meta := s.metadataService.InferMetadata(ctx, extracted.Text)

	// 3) Quality gate, before any second inference call or side effect
	if meta.Quality == types.QualityLow {
		s.log.Info("Upload rejected by quality gate", "user_id", userID, "name", upload.OriginalName)
		return &IngestResult{Status: IngestRejectedQuality, Reason: ReasonLowQuality}, nil
	}

	// 4) Resolve title; the vision call is lazy and image-only
	var visionTitle func() string
	if upload.MediaKind == types.MediaKindImage {
		visionTitle = func() string {
			return s.metadataService.ExactTitleFromImageText(ctx, extracted.Text)
		}
	}
	title := ResolveTitle(meta.TitleExactFromText, extracted.NativeTitle, visionTitle, meta.Title)

	// 5) Relevance gate; ambiguous is a reject, never an accept
	rel := s.relevance.Classify(ctx, title, meta.Category, meta.Description, extracted.Text)
	if rel.Decision != RelevanceAccept {
		s.log.Info("Upload rejected by relevance gate",
			"user_id", userID, "name", upload.OriginalName,
			"ambiguous", rel.Decision == RelevanceAmbiguous, "reason", rel.Reason)
		return &IngestResult{Status: IngestRejectedRelevance, Reason: rel.Reason}, nil
	}

	// Durable section. Do not start it for a cancelled request; once started,
	// run it to completion rather than leaving a partial commit behind.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	dctx := context.WithoutCancel(ctx)

	// 6) Commit to object storage; cleanup stays unsafe until this succeeds
	resourceID := uuid.New()
	storageKey := fmt.Sprintf("resources/%s/%s", userID.String(), resourceID.String())

	f, err := os.Open(upload.TempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open temp upload: %v", ErrStorageCommit, err)
	}
	uploadErr := s.bucketService.UploadFile(dctx, storageKey, f)
	_ = f.Close()
	if uploadErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCommit, uploadErr)
	}

	// 7) Persist the resource row. On failure the just-committed object gets a
	// best-effort delete so storage does not accumulate orphans.
	now := time.Now()
	resource := &types.Resource{
		ID:           resourceID,
		UserID:       userID,
		Title:        title,
		Category:     meta.Category,
		Description:  meta.Description,
		Quality:      meta.Quality,
		MediaKind:    upload.MediaKind,
		OriginalName: upload.OriginalName,
		MimeType:     upload.MimeType,
		SizeBytes:    upload.SizeBytes,
		StorageKey:   storageKey,
		FileURL:      s.bucketService.GetPublicURL(storageKey),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.resourceRepo.Create(dctx, nil, []*types.Resource{resource}); err != nil {
		if delErr := s.bucketService.DeleteFile(dctx, storageKey); delErr != nil {
			s.log.Error("Failed to delete orphaned storage object", "storage_key", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// 8) Credit the uploader. Balance, level and the ledger entry commit as one
	// unit; the streak rides along. If this fails the resource still exists
	// without credit, which is detectable from the ledger.
	ledgerErr := s.db.WithContext(dctx).Transaction(func(tx *gorm.DB) error {
		entryMeta := map[string]any{"resource_id": resourceID.String()}
		if _, err := s.pointsService.Award(dctx, tx, userID, s.uploadReward, types.PointReasonResourceAccepted, entryMeta); err != nil {
			return err
		}
		if _, err := s.pointsService.TouchStreak(dctx, tx, userID, now); err != nil {
			return err
		}
		return nil
	})
	if ledgerErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedger, ledgerErr)
	}

	s.log.Info("Resource ingested",
		"resource_id", resourceID, "user_id", userID,
		"title", title, "quality", meta.Quality)
	return &IngestResult{Status: IngestAccepted, Resource: resource}, nil
}

package catalogsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogjobs"
	"github.com/Pikiko14/motowork-products/pkg/fsx"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/Pikiko14/motowork-products/pkg/logx"
	"github.com/google/uuid"
)

// Config names the queues the service enqueues on and the media folder.
type Config struct {
	MediaQueue string
	SyncQueue  string
	Folder     string
}

// Service is the write-side API of product media: it stages incoming files,
// enqueues the jobs that process them, and applies the synchronous parts of
// media updates through the merger.
type Service struct {
	repo    catalog.ProductRepository
	merger  *Merger
	staging fsx.FileSystem
	queues  *jobx.Registry
	cfg     Config
}

// NewService wires the product media service.
func NewService(repo catalog.ProductRepository, merger *Merger, staging fsx.FileSystem, queues *jobx.Registry, cfg Config) *Service {
	if cfg.Folder == "" {
		cfg.Folder = "products"
	}
	return &Service{
		repo:    repo,
		merger:  merger,
		staging: staging,
		queues:  queues,
		cfg:     cfg,
	}
}

// StagedFile is an incoming upload before staging: original name plus bytes.
type StagedFile struct {
	Name string
	Data []byte
}

// AttachRequest carries the files of one attach call, split by role and
// variant the way the upload form sends them.
type AttachRequest struct {
	BannerMobile  *StagedFile
	BannerDesktop *StagedFile
	ImagesMobile  []StagedFile
	ImagesDesktop []StagedFile
}

func (r AttachRequest) empty() bool {
	return r.BannerMobile == nil && r.BannerDesktop == nil &&
		len(r.ImagesMobile) == 0 && len(r.ImagesDesktop) == 0
}

// AttachProductFiles stages the request's files and enqueues their upload
// jobs: one single-upload job per banner, one batch job per image list.
// It returns the ids of the enqueued jobs.
func (s *Service) AttachProductFiles(ctx context.Context, productID string, req AttachRequest) ([]string, error) {
	if req.empty() {
		return nil, nil
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalog.NewProductNotFound(productID)
	}

	var jobIDs []string

	banners := []struct {
		file    *StagedFile
		variant catalog.Variant
	}{
		{req.BannerMobile, catalog.VariantMobile},
		{req.BannerDesktop, catalog.VariantDesktop},
	}
	for _, b := range banners {
		if b.file == nil {
			continue
		}
		id, err := s.enqueueSingleUpload(ctx, productID, *b.file, catalog.RoleBanner, b.variant, false)
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, id)
	}

	batches := []struct {
		files   []StagedFile
		variant catalog.Variant
	}{
		{req.ImagesMobile, catalog.VariantMobile},
		{req.ImagesDesktop, catalog.VariantDesktop},
	}
	for _, b := range batches {
		if len(b.files) == 0 {
			continue
		}
		id, err := s.enqueueBatchUpload(ctx, productID, b.files, b.variant)
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, id)
	}

	return jobIDs, nil
}

// AttachIconOnCreate stages the icon uploaded together with a new product
// and enqueues it as the product's default desktop image.
func (s *Service) AttachIconOnCreate(ctx context.Context, productID string, file StagedFile) (string, error) {
	return s.enqueueSingleUpload(ctx, productID, file, catalog.RoleImage, catalog.VariantDesktop, true)
}

func (s *Service) enqueueSingleUpload(ctx context.Context, productID string, file StagedFile, role catalog.MediaRole, variant catalog.Variant, isDefault bool) (string, error) {
	stagingPath, err := s.stageFile(ctx, string(role), file)
	if err != nil {
		return "", err
	}

	payload := catalogjobs.UploadSinglePayload{
		ProductID:   productID,
		StagingPath: stagingPath,
		Folder:      s.cfg.Folder,
		Role:        role,
		Variant:     variant,
		IsDefault:   isDefault,
	}
	return s.enqueue(ctx, s.cfg.MediaQueue, catalogjobs.TypeUploadSingle, payload)
}

func (s *Service) enqueueBatchUpload(ctx context.Context, productID string, files []StagedFile, variant catalog.Variant) (string, error) {
	items := make([]catalogjobs.BatchItem, 0, len(files))
	for _, f := range files {
		stagingPath, err := s.stageFile(ctx, "images", f)
		if err != nil {
			return "", err
		}
		items = append(items, catalogjobs.BatchItem{StagingPath: stagingPath, Variant: variant})
	}

	payload := catalogjobs.UploadBatchPayload{
		ProductID: productID,
		Folder:    s.cfg.Folder,
		Role:      catalog.RoleImage,
		Items:     items,
	}
	return s.enqueue(ctx, s.cfg.MediaQueue, catalogjobs.TypeUploadBatch, payload)
}

// RemoveProductImage takes the image off the product document right away
// and enqueues the remote delete. Returns the delete job id.
func (s *Service) RemoveProductImage(ctx context.Context, productID string, role catalog.MediaRole, imageID string) (string, error) {
	url, err := s.merger.RemoveImage(ctx, productID, role, imageID)
	if err != nil {
		return "", err
	}

	payload := catalogjobs.DeleteRemotePayload{URL: url, Folder: s.cfg.Folder}
	jobID, err := s.enqueue(ctx, s.cfg.MediaQueue, catalogjobs.TypeDeleteRemote, payload)
	if err != nil {
		// The document update already happened; the orphaned object is
		// logged rather than rolled back.
		logx.WithError(err).Errorf("catalog: image %s removed from product %s but remote delete was not enqueued", imageID, productID)
		return "", err
	}
	return jobID, nil
}

// SetDefaultImage marks the image as the default of its variant, or clears
// the flag. This is a synchronous document update, no job involved.
func (s *Service) SetDefaultImage(ctx context.Context, productID, imageID string, isDefault bool) error {
	return s.merger.SetDefaultImage(ctx, productID, imageID, isDefault)
}

// ImportFromContapyme enqueues one sync job per seed on the serialized sync
// queue and returns the accepted job ids. Enqueueing stops at the first
// broker failure.
func (s *Service) ImportFromContapyme(ctx context.Context, seeds []catalogjobs.ProductSeed) ([]string, error) {
	jobIDs := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		payload := catalogjobs.CatalogSyncPayload{Product: seed}
		id, err := s.enqueue(ctx, s.cfg.SyncQueue, catalogjobs.TypeCatalogSync, payload)
		if err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, id)
	}
	return jobIDs, nil
}

// JobStatus returns the stored state of a job on the named queue.
func (s *Service) JobStatus(ctx context.Context, queue, jobID string) (*jobx.JobInfo, error) {
	return s.queues.GetJob(ctx, queue, jobID)
}

func (s *Service) enqueue(ctx context.Context, queue, jobType string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return s.queues.Enqueue(ctx, queue, jobx.Job{Type: jobType, Payload: raw})
}

// stageFile writes the upload into the staging area under a collision-free
// name and returns the staging-relative path.
func (s *Service) stageFile(ctx context.Context, field string, file StagedFile) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	name := fmt.Sprintf("%s-%d-%s%s", field, time.Now().UnixMilli(), uuid.New().String(), ext)
	path := s.staging.Join(s.cfg.Folder, name)

	if err := s.staging.WriteFile(ctx, path, file.Data); err != nil {
		return "", err
	}
	return path, nil
}

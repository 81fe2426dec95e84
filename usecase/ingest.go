package usecase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	domainJob "github.com/vectorhub/ragcache/domains/job"
	"github.com/vectorhub/ragcache/repository"
)

const (
	maxFetchBytes   = 10 * 1024 * 1024
	chunkSizeChars  = 1000
	embedBatchSize  = 64
	fetchURLTimeout = 30 * time.Second
)

// IChunkStore is what the pipeline needs from chunk persistence.
type IChunkStore interface {
	ReplaceForDocument(ctx context.Context, tenantID, documentID string, chunks []repository.ChunkRecord) error
}

// IEmbedder turns texts into vectors. Nil is allowed: chunks are then
// stored without embeddings.
type IEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService runs one locked job through extract, chunk, embed and
// store, checking for cooperative cancellation between stages.
type IngestService struct {
	jobs        domainJob.IJobUsecase
	cache       domainCache.ICacheUsecase
	chunks      IChunkStore
	embedder    IEmbedder
	storagePath string
}

// NewIngestService builds the pipeline behind the worker pool's
// ProcessFunc.
func NewIngestService(jobs domainJob.IJobUsecase, cache domainCache.ICacheUsecase, chunks IChunkStore, embedder IEmbedder, storagePath string) *IngestService {
	return &IngestService{
		jobs:        jobs,
		cache:       cache,
		chunks:      chunks,
		embedder:    embedder,
		storagePath: storagePath,
	}
}

// Process is the ProcessFunc handed to the worker pool. Returning nil
// for a cancelled job is deliberate: Complete preserves the cancelled
// state, and the pool must not record it as failed.
func (s *IngestService) Process(ctx context.Context, j *domainJob.ProcessingJob) error {
	// Stage 1: extract.
	content, err := s.extract(ctx, j)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if stop, err := s.stageBoundary(ctx, j.ID, 25); stop || err != nil {
		return err
	}

	// Stage 2: chunk.
	pieces := splitChunks(content, chunkSizeChars)
	if len(pieces) == 0 {
		return fmt.Errorf("document %s produced no content", j.DocumentID)
	}
	if stop, err := s.stageBoundary(ctx, j.ID, 50); stop || err != nil {
		return err
	}

	// Stage 3: embed.
	var vectors [][]float32
	if s.embedder != nil {
		vectors, err = s.embedAll(ctx, pieces)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
	}
	if stop, err := s.stageBoundary(ctx, j.ID, 75); stop || err != nil {
		return err
	}

	// Stage 4: store.
	records := make([]repository.ChunkRecord, len(pieces))
	for i, piece := range pieces {
		record := repository.ChunkRecord{
			ID:           j.ID + ":" + fmt.Sprintf("%04d", i),
			TenantID:     j.TenantID,
			CollectionID: j.CollectionID,
			DocumentID:   j.DocumentID,
			Position:     i,
			Content:      piece,
		}
		if vectors != nil && i < len(vectors) {
			record.Embedding = pgvector.NewVector(vectors[i])
		}
		records[i] = record
	}
	if err := s.chunks.ReplaceForDocument(ctx, j.TenantID, j.DocumentID, records); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := s.jobs.UpdateProgress(ctx, j.ID, 100); err != nil {
		logrus.WithError(err).Warnf("[WORKER] Progress update failed for job %s", j.ID)
	}

	// Stale cached views of this tenant's collection and query results
	// now point at old chunks; fan out before reporting completion.
	counts := s.cache.InvalidateCoordinated(ctx, j.TenantID, "document", j.DocumentID, []domainCache.RelatedInvalidation{
		{DataType: "collection", ResourceID: j.CollectionID},
		{DataType: "query_result", ResourceID: domainCache.Wildcard},
	})
	logrus.Debugf("[WORKER] Post-ingest invalidation for job %s: %v", j.ID, counts)

	return nil
}

// stageBoundary updates progress and checks for cooperative
// cancellation. stop=true means a cancel arrived and the pipeline
// should end quietly.
func (s *IngestService) stageBoundary(ctx context.Context, jobID string, progress int) (bool, error) {
	if err := s.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		logrus.WithError(err).Warnf("[WORKER] Progress update failed for job %s", jobID)
	}
	cancelled, err := s.jobs.IsCancelled(ctx, jobID)
	if err != nil {
		// Unable to tell; keep going, the final Complete re-checks.
		logrus.WithError(err).Warnf("[WORKER] Cancellation check failed for job %s", jobID)
		return false, nil
	}
	if cancelled {
		logrus.Infof("[WORKER] Job %s cancelled, stopping pipeline", jobID)
		return true, nil
	}
	return false, nil
}

func (s *IngestService) extract(ctx context.Context, j *domainJob.ProcessingJob) (string, error) {
	switch j.SourceType {
	case domainJob.SourceText:
		return j.TextContent, nil

	case domainJob.SourceURL:
		reqCtx, cancel := context.WithTimeout(ctx, fetchURLTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, j.URL, nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: status %d", j.URL, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
		if err != nil {
			return "", err
		}
		return string(data), nil

	case domainJob.SourceFile:
		path := filepath.Join(s.storagePath, filepath.Clean("/"+j.FileKey))
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("unsupported source type: %s", j.SourceType)
	}
}

func (s *IngestService) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(pieces))
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch, err := s.embedder.EmbedTexts(ctx, pieces[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// splitChunks breaks content into pieces of roughly size characters,
// preferring word boundaries.
func splitChunks(content string, size int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= size {
		return []string{content}
	}

	var chunks []string
	words := strings.Fields(content)
	var b strings.Builder
	for _, word := range words {
		if b.Len() > 0 && b.Len()+len(word)+1 > size {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

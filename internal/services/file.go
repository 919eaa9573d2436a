package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/analysis"
	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/socket"
	"github.com/devforge-org/devforge-backend/internal/types"
	"github.com/devforge-org/devforge-backend/internal/utils"
	"github.com/devforge-org/devforge-backend/internal/vectorstore"
)

const (
	// ExcerptBytes is how much of each attached file goes into a prompt.
	ExcerptBytes   = 8 << 10
	indexTimeout   = 5 * time.Minute
	embedBatchSize = 32
	contextChunks  = 5
)

type UploadInput struct {
	Name        string
	ContentType string
	ProjectID   *uuid.UUID
	Body        io.Reader
}

type FileService interface {
	Upload(ctx context.Context, in UploadInput) (*types.File, error)
	List(ctx context.Context, projectID *uuid.UUID) ([]*types.File, error)
	Get(ctx context.Context, id uuid.UUID) (*types.File, error)
	OpenContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.File, error)
	OpenThumbnail(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.File, error)
	Reanalyze(ctx context.Context, id uuid.UUID) (*types.File, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Analyze runs the file analysis on content without storing anything.
	Analyze(filename string, content []byte) (*analysis.Result, error)

	// PromptContext builds the file section of a chat prompt: an excerpt per
	// file and, with the vector index on, the chunks closest to query.
	PromptContext(ctx context.Context, userID uuid.UUID, fileIDs []uuid.UUID, query string) (string, error)

	// Wait blocks until background indexing has finished.
	Wait()
}

type fileService struct {
	log            *logger.Logger
	fileRepo       repos.FileRepo
	projectRepo    repos.ProjectRepo
	bucket         bucket.Bucket
	store          vectorstore.Store
	llmClient      *llm.Client
	llmConfigs     LLMConfigService
	vectorCfg      config.VectorConfig
	emitter        Emitter
	maxUploadBytes int64
	wg             sync.WaitGroup
}

// NewFileService takes a nil store when indexing is disabled.
func NewFileService(
	log *logger.Logger,
	fileRepo repos.FileRepo,
	projectRepo repos.ProjectRepo,
	b bucket.Bucket,
	store vectorstore.Store,
	llmClient *llm.Client,
	llmConfigs LLMConfigService,
	vectorCfg config.VectorConfig,
	emitter Emitter,
	maxUploadBytes int64,
) FileService {
	return &fileService{
		log:            log.With("service", "FileService"),
		fileRepo:       fileRepo,
		projectRepo:    projectRepo,
		bucket:         b,
		store:          store,
		llmClient:      llmClient,
		llmConfigs:     llmConfigs,
		vectorCfg:      vectorCfg,
		emitter:        emitter,
		maxUploadBytes: maxUploadBytes,
	}
}

func fileKey(userID, fileID uuid.UUID, name string) string {
	return path.Join("files", userID.String(), fileID.String(), name)
}

func thumbnailKey(userID, fileID uuid.UUID) string {
	return path.Join("files", userID.String(), fileID.String(), "thumb.png")
}

func (fs *fileService) readCapped(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, fs.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > fs.maxUploadBytes {
		return nil, invalidInput("file is larger than %d bytes", fs.maxUploadBytes)
	}
	if len(content) == 0 {
		return nil, invalidInput("file is empty")
	}
	return content, nil
}

func (fs *fileService) Upload(ctx context.Context, in UploadInput) (*types.File, error) {
	fs.log.Info("Starting Upload now...", "name", in.Name)
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if in.ProjectID != nil {
		if _, err := fs.projectRepo.GetByIDForUser(ctx, nil, userID, *in.ProjectID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, invalidInput("unknown project %s", *in.ProjectID)
			}
			return nil, err
		}
	}
	content, err := fs.readCapped(in.Body)
	if err != nil {
		return nil, err
	}

	name := utils.SanitizeFileName(in.Name)
	sum := sha256.Sum256(content)
	file := &types.File{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   in.ProjectID,
		Name:        name,
		Size:        int64(len(content)),
		ContentType: in.ContentType,
		SHA256:      hex.EncodeToString(sum[:]),
		Status:      types.FileStatusAnalyzed,
	}
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}
	file.BucketKey = fileKey(userID, file.ID, name)

	if err := fs.bucket.Upload(ctx, file.BucketKey, bytes.NewReader(content), file.Size, file.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	result := analysis.Analyze(name, content)
	file.Analysis = datatypes.JSONMap(result.ToMap())
	if result.Image != nil {
		fs.storeThumbnail(ctx, file, content)
	}

	if _, err := fs.fileRepo.Create(ctx, nil, file); err != nil {
		fs.cleanupBlobs(ctx, file)
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	publish(ctx, fs.emitter, eventdata.Event{
		Channel: socket.UserChannel(userID),
		Type:    eventdata.FileAnalyzed,
		Data:    file,
	})

	if fs.store != nil && !result.Binary {
		fs.startIndex(userID, file, string(content))
	}
	fs.log.Info("File uploaded :)", "fileID", file.ID, "size", file.Size, "language", result.Language)
	return file, nil
}

func (fs *fileService) storeThumbnail(ctx context.Context, file *types.File, content []byte) {
	thumb, err := analysis.Thumbnail(content)
	if err != nil {
		fs.log.Warn("Failed to build thumbnail", "fileID", file.ID, "error", err)
		return
	}
	key := thumbnailKey(file.UserID, file.ID)
	if err := fs.bucket.Upload(ctx, key, bytes.NewReader(thumb), int64(len(thumb)), "image/png"); err != nil {
		fs.log.Warn("Failed to store thumbnail", "fileID", file.ID, "error", err)
		return
	}
	file.ThumbnailKey = key
}

func (fs *fileService) cleanupBlobs(ctx context.Context, file *types.File) {
	for _, key := range []string{file.BucketKey, file.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := fs.bucket.Delete(ctx, key); err != nil && !errors.Is(err, bucket.ErrObjectNotFound) {
			fs.log.Warn("Failed to delete blob", "key", key, "error", err)
		}
	}
}

func (fs *fileService) List(ctx context.Context, projectID *uuid.UUID) ([]*types.File, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	files, err := fs.fileRepo.ListByUser(ctx, nil, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (fs *fileService) Get(ctx context.Context, id uuid.UUID) (*types.File, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	file, err := fs.fileRepo.GetByIDForUser(ctx, nil, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "file")
	}
	return file, nil
}

func (fs *fileService) open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, _, err := fs.bucket.Open(ctx, key)
	if err != nil {
		if errors.Is(err, bucket.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: file content", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file content: %w", err)
	}
	return rc, nil
}

func (fs *fileService) OpenContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.File, error) {
	file, err := fs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := fs.open(ctx, file.BucketKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, file, nil
}

func (fs *fileService) OpenThumbnail(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.File, error) {
	file, err := fs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !file.HasThumbnail() {
		return nil, nil, fmt.Errorf("%w: thumbnail", ErrNotFound)
	}
	rc, err := fs.open(ctx, file.ThumbnailKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, file, nil
}

func (fs *fileService) Reanalyze(ctx context.Context, id uuid.UUID) (*types.File, error) {
	file, err := fs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := fs.open(ctx, file.BucketKey)
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	result := analysis.Analyze(file.Name, content)
	fields := map[string]interface{}{"analysis": datatypes.JSONMap(result.ToMap())}
	if file.Status == types.FileStatusUploaded || file.Status == types.FileStatusFailed {
		fields["status"] = types.FileStatusAnalyzed
	}
	if result.Image != nil && !file.HasThumbnail() {
		fs.storeThumbnail(ctx, file, content)
		if file.HasThumbnail() {
			fields["thumbnail_key"] = file.ThumbnailKey
		}
	}
	if err := fs.fileRepo.UpdateFields(ctx, nil, file.ID, fields); err != nil {
		return nil, notFoundOr(err, "file")
	}
	file.Analysis = fields["analysis"].(datatypes.JSONMap)
	if s, ok := fields["status"].(string); ok {
		file.Status = s
	}
	publish(ctx, fs.emitter, eventdata.Event{
		Channel: socket.UserChannel(file.UserID),
		Type:    eventdata.FileAnalyzed,
		Data:    file,
	})
	return file, nil
}

// Delete removes the row first; blob and vector cleanup failures are logged.
func (fs *fileService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := fs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fs.fileRepo.Delete(ctx, nil, file.UserID, file.ID); err != nil {
		return notFoundOr(err, "file")
	}
	fs.cleanupBlobs(ctx, file)
	if fs.store != nil {
		if err := fs.store.DeleteFile(ctx, file.ID); err != nil {
			fs.log.Warn("Failed to delete vector points", "fileID", file.ID, "error", err)
		}
	}
	fs.log.Info("File deleted :)", "fileID", file.ID)
	return nil
}

func (fs *fileService) Analyze(filename string, content []byte) (*analysis.Result, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, invalidInput("filename is required")
	}
	if int64(len(content)) > fs.maxUploadBytes {
		return nil, invalidInput("content is larger than %d bytes", fs.maxUploadBytes)
	}
	return analysis.Analyze(utils.SanitizeFileName(filename), content), nil
}

func (fs *fileService) PromptContext(ctx context.Context, userID uuid.UUID, fileIDs []uuid.UUID, query string) (string, error) {
	fileIDs = dedupeIDs(fileIDs)
	if len(fileIDs) == 0 {
		return "", nil
	}
	files, err := fs.fileRepo.GetByIDsForUser(ctx, nil, userID, fileIDs)
	if err != nil {
		return "", fmt.Errorf("failed to load files: %w", err)
	}
	if len(files) != len(fileIDs) {
		return "", invalidInput("unknown file id")
	}

	var b strings.Builder
	for _, file := range files {
		excerpt, err := fs.excerpt(ctx, file)
		if err != nil {
			fs.log.Warn("Failed to read file excerpt", "fileID", file.ID, "error", err)
			continue
		}
		if excerpt == "" {
			fmt.Fprintf(&b, "File %s is binary (%d bytes).\n\n", file.Name, file.Size)
			continue
		}
		fmt.Fprintf(&b, "File %s:\n```\n%s\n```\n\n", file.Name, excerpt)
	}

	if fs.store != nil && strings.TrimSpace(query) != "" {
		matches, err := fs.relevantChunks(ctx, userID, fileIDs, query)
		if err != nil {
			fs.log.Warn("Vector lookup failed", "error", err)
		} else if len(matches) > 0 {
			names := make(map[uuid.UUID]string, len(files))
			for _, f := range files {
				names[f.ID] = f.Name
			}
			b.WriteString("Relevant passages:\n")
			for _, m := range matches {
				fmt.Fprintf(&b, "[%s #%d] %s\n\n", names[m.FileID], m.Chunk, m.Text)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (fs *fileService) excerpt(ctx context.Context, file *types.File) (string, error) {
	rc, err := fs.open(ctx, file.BucketKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	// one extra byte so Excerpt can find the rune boundary
	head, err := io.ReadAll(io.LimitReader(rc, ExcerptBytes+1))
	if err != nil {
		return "", err
	}
	return analysis.Excerpt(head, ExcerptBytes), nil
}

func (fs *fileService) embeddingEndpoint(ctx context.Context, userID uuid.UUID) (llm.Endpoint, string, error) {
	cfg, err := fs.llmConfigs.Resolve(ctx, userID, nil, nil)
	if err != nil {
		return llm.Endpoint{}, "", err
	}
	model := fs.vectorCfg.EmbeddingModel
	if model == "" {
		model = cfg.Model
	}
	return EndpointFor(cfg), model, nil
}

func (fs *fileService) relevantChunks(ctx context.Context, userID uuid.UUID, fileIDs []uuid.UUID, query string) ([]vectorstore.Match, error) {
	ep, model, err := fs.embeddingEndpoint(ctx, userID)
	if err != nil {
		return nil, err
	}
	vectors, err := fs.llmClient.Embed(ctx, ep, model, []string{query})
	if err != nil {
		return nil, err
	}
	return fs.store.Query(ctx, userID, fileIDs, vectors[0], contextChunks)
}

func (fs *fileService) startIndex(userID uuid.UUID, file *types.File, text string) {
	fs.wg.Add(1)
	go func() {
		defer fs.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		fs.index(ctx, userID, file, text)
	}()
}

func (fs *fileService) index(ctx context.Context, userID uuid.UUID, file *types.File, text string) {
	fs.log.Info("Starting index now...", "fileID", file.ID)
	chunks, err := fs.embedAndStore(ctx, userID, file.ID, text)

	updated := datatypes.JSONMap{}
	for k, v := range file.Analysis {
		updated[k] = v
	}
	status := types.FileStatusIndexed
	if err != nil {
		status = types.FileStatusFailed
		updated["indexError"] = err.Error()
		fs.log.Warn("Failed to index file", "fileID", file.ID, "error", err)
	} else {
		updated["indexedChunks"] = chunks
	}
	if err := fs.fileRepo.UpdateFields(ctx, nil, file.ID, map[string]interface{}{
		"status":   status,
		"analysis": updated,
	}); err != nil {
		fs.log.Error("Failed to record index status", "fileID", file.ID, "error", err)
		return
	}
	if fs.emitter != nil {
		fs.emitter.Emit(ctx, eventdata.Event{
			Channel: socket.UserChannel(userID),
			Type:    eventdata.FileIndexed,
			Data:    map[string]interface{}{"fileId": file.ID, "status": status, "chunks": chunks},
		})
	}
	fs.log.Info("Index finished :)", "fileID", file.ID, "status", status, "chunks", chunks)
}

func (fs *fileService) embedAndStore(ctx context.Context, userID, fileID uuid.UUID, text string) (int, error) {
	chunks := vectorstore.ChunkText(text, vectorstore.ChunkSize, vectorstore.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}
	ep, model, err := fs.embeddingEndpoint(ctx, userID)
	if err != nil {
		return 0, err
	}
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := fs.llmClient.Embed(ctx, ep, model, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("embedding failed: %w", err)
		}
		vectors = append(vectors, batch...)
	}
	if err := fs.store.Upsert(ctx, userID, fileID, chunks, vectors); err != nil {
		return 0, fmt.Errorf("vector upsert failed: %w", err)
	}
	return len(chunks), nil
}

func (fs *fileService) Wait() {
	fs.wg.Wait()
}

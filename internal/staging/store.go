package staging

import (
	"context"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"time"

	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/internal/repository"
	"catalogo-sync-api/pkg/apierror"
	"catalogo-sync-api/pkg/uid"
)

// MaxImageSize is the largest accepted image payload.
const MaxImageSize = 5 * 1024 * 1024

// MaxDescriptionLen is the longest accepted entry description.
const MaxDescriptionLen = 500

// allowedImageMIMEs are the accepted image content types.
var allowedImageMIMEs = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ImageUpload is a new image payload attached to a staged change.
type ImageUpload struct {
	MIME string
	Data []byte
}

// StageRequest describes one mutation to capture.
type StageRequest struct {
	Kind       model.ChangeKind
	EntityKind model.EntityKind
	Snapshot   model.CatalogEntry

	// OriginalName is the entry's current remote name, used as a fallback
	// match key when the entry predates stable ids. Defaults to the
	// snapshot name.
	OriginalName string

	Image *ImageUpload
}

// Store captures catalog mutations into a durable local log plus a blob
// store for new image payloads. It has no network access.
type Store struct {
	repo  repository.StagingRepository
	blobs *BlobStore

	// catalogIDs returns the ids of the last-loaded remote catalog, used
	// to keep generated ids collision-free.
	catalogIDs func(ctx context.Context) []string

	now func() time.Time
}

// Config holds the dependencies of a staging Store.
type Config struct {
	Repository repository.StagingRepository
	Blobs      *BlobStore
	CatalogIDs func(ctx context.Context) []string
	Clock      func() time.Time
}

// NewStore creates a staging store with injected dependencies.
func NewStore(cfg Config) *Store {
	s := &Store{
		repo:       cfg.Repository,
		blobs:      cfg.Blobs,
		catalogIDs: cfg.CatalogIDs,
		now:        cfg.Clock,
	}
	if s.catalogIDs == nil {
		s.catalogIDs = func(context.Context) []string { return nil }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Stage validates and captures a mutation. The snapshot is deep-copied;
// later edits to the caller's copy do not leak into the log. Returns the
// recorded change, or a VALIDATION_ERROR / IMAGE_ERROR.
func (s *Store) Stage(ctx context.Context, req StageRequest) (*model.StagedChange, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	snapshot := *req.Snapshot.Clone()

	if req.Kind == model.ChangeKindNew && snapshot.ID == "" {
		id, err := s.generateID(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.ID = id
	}

	originalName := req.OriginalName
	if originalName == "" {
		originalName = snapshot.Name
	}

	change := &model.StagedChange{
		ID:           uid.New(),
		Kind:         req.Kind,
		EntityKind:   req.EntityKind,
		EntityID:     snapshot.ID,
		Timestamp:    s.now(),
		OriginalName: originalName,
	}

	if req.Image != nil {
		filename, err := s.storeImage(snapshot.Name, req.Image)
		if err != nil {
			return nil, err
		}
		change.ImageRef = filename
		snapshot.Images = []string{filename}
	}

	change.Snapshot = snapshot

	if err := s.repo.AppendChange(ctx, change); err != nil {
		// Do not leave an orphaned blob behind a failed append.
		if change.ImageRef != "" {
			_ = s.blobs.Delete(change.ImageRef)
		}
		return nil, apierror.Internal(fmt.Sprintf("failed to record staged change: %v", err))
	}

	return change, nil
}

// List returns all staged changes in log order.
func (s *Store) List(ctx context.Context) ([]model.StagedChange, error) {
	return s.repo.ListChanges(ctx)
}

// Discard removes one staged change and its blob, if any.
func (s *Store) Discard(ctx context.Context, id string) error {
	change, err := s.repo.GetChange(ctx, id)
	if err != nil {
		if err == repository.ErrChangeNotFound {
			return apierror.NotFound(fmt.Sprintf("staged change %s not found", id))
		}
		return err
	}

	if err := s.repo.DeleteChange(ctx, id); err != nil {
		if err == repository.ErrChangeNotFound {
			return apierror.NotFound(fmt.Sprintf("staged change %s not found", id))
		}
		return err
	}

	if change.ImageRef != "" {
		if err := s.blobs.Delete(change.ImageRef); err != nil {
			return err
		}
	}
	return nil
}

// DiscardAll removes every staged change and clears the blob store.
func (s *Store) DiscardAll(ctx context.Context) error {
	if err := s.repo.DeleteAllChanges(ctx); err != nil {
		return err
	}
	return s.blobs.Clear()
}

// ImageData reads the blob behind a staged change's image reference.
func (s *Store) ImageData(ref string) ([]byte, error) {
	return s.blobs.Get(ref)
}

// validate collects every violated constraint into one validation error.
func (s *Store) validate(req *StageRequest) error {
	var details []apierror.FieldError

	if !req.Kind.Valid() {
		details = append(details, apierror.FieldError{Field: "kind", Message: "must be new, modify, or delete"})
	}
	if !req.EntityKind.Valid() {
		details = append(details, apierror.FieldError{Field: "entityKind", Message: "must be product or pack"})
	}

	snap := &req.Snapshot
	if strings.TrimSpace(snap.Name) == "" {
		details = append(details, apierror.FieldError{Field: "name", Message: "must not be empty"})
	}
	if strings.TrimSpace(snap.Category) == "" {
		details = append(details, apierror.FieldError{Field: "category", Message: "must not be empty"})
	}
	if snap.Price < 0 {
		details = append(details, apierror.FieldError{Field: "price", Message: "must not be negative"})
	}
	if snap.DiscountPercent < 0 || snap.DiscountPercent > 100 {
		details = append(details, apierror.FieldError{Field: "discountPercent", Message: "must be between 0 and 100"})
	}
	if len(snap.Description) > MaxDescriptionLen {
		details = append(details, apierror.FieldError{Field: "description",
			Message: fmt.Sprintf("must be at most %d characters", MaxDescriptionLen)})
	}
	if req.Kind != model.ChangeKindNew && snap.ID == "" && strings.TrimSpace(snap.Name) == "" {
		details = append(details, apierror.FieldError{Field: "id", Message: "id or name required to locate the entry"})
	}

	if len(details) > 0 {
		return apierror.Validation("staged change failed validation", details...)
	}
	return nil
}

// storeImage validates and persists an image payload, returning the
// derived filename. The name embeds a timestamp so repeated uploads for
// the same entry never collide.
func (s *Store) storeImage(entryName string, img *ImageUpload) (string, error) {
	mediaType := img.MIME
	if parsed, _, err := mime.ParseMediaType(img.MIME); err == nil {
		mediaType = parsed
	}

	ext, ok := allowedImageMIMEs[mediaType]
	if !ok {
		return "", apierror.Image(fmt.Sprintf("unsupported image type %q", img.MIME))
	}
	if len(img.Data) == 0 {
		return "", apierror.Image("image payload is empty")
	}
	if len(img.Data) > MaxImageSize {
		return "", apierror.Image(fmt.Sprintf("image exceeds %d bytes", MaxImageSize))
	}

	filename := fmt.Sprintf("%s-%d%s", slugify(entryName), s.now().UnixMilli(), ext)
	if err := s.blobs.Put(filename, img.Data); err != nil {
		return "", apierror.Internal(err.Error())
	}
	return filename, nil
}

// generateID returns an id unused by both the current catalog and all
// staged entries.
func (s *Store) generateID(ctx context.Context) (string, error) {
	taken := make(map[string]bool)
	for _, id := range s.catalogIDs(ctx) {
		taken[id] = true
	}

	changes, err := s.repo.ListChanges(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list staged changes: %w", err)
	}
	for _, c := range changes {
		taken[c.EntityID] = true
	}

	for {
		id := uid.New()
		if !taken[id] {
			return id, nil
		}
	}
}

// slugify lowercases a name and collapses runs of non-alphanumerics.
func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "imagen"
	}
	return slug
}

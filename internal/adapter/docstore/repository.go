package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avoropay/accounts-core/internal/domain"
)

// Entity is the contract every persisted record satisfies: a string
// document identity plus the audit envelope.
type Entity interface {
	DocumentID() string
	SetDocumentID(id string)
	AuditFields() *domain.Audit
	Validate() error
}

// Repository provides audit-enforced CRUD for one collection. T is the
// entity value type; PT its pointer type implementing Entity.
//
// Every write stamps the envelope first and serializes only after the
// envelope and the entity's own invariants validate; a record without an
// envelope never reaches the store. Updates are compare-and-swap on the
// stored version, so a lost update surfaces as domain.ErrConflict.
type Repository[T any, PT interface {
	Entity
	*T
}] struct {
	store      *Store
	collection string
	log        *slog.Logger
	now        func() time.Time
}

// NewRepository creates a repository for one collection.
func NewRepository[T any, PT interface {
	Entity
	*T
}](store *Store, collection string, logger *slog.Logger) *Repository[T, PT] {
	return &Repository[T, PT]{
		store:      store,
		collection: collection,
		log:        logger.With("collection", collection),
		now:        time.Now,
	}
}

// Collection returns the collection name this repository serves.
func (r *Repository[T, PT]) Collection() string { return r.collection }

// Save persists an entity, inferring create vs update from the presence of
// a document ID. New entities get a generated UUID and a fresh envelope;
// existing ones get stamped attribution, a version bump, and a CAS write.
func (r *Repository[T, PT]) Save(ctx context.Context, e PT, actorID string) (PT, error) {
	if err := r.validateInputs(e, actorID); err != nil {
		return nil, err
	}

	if e.DocumentID() == "" {
		e.SetDocumentID(uuid.NewString())
		return r.create(ctx, e, actorID)
	}
	return r.update(ctx, e, actorID)
}

// ForceCreate persists an entity whose identity was deliberately assigned
// before the first save (e.g. a user whose ID is its reserved owner ID).
// Without this escape hatch such entities would be misclassified as
// updates by Save.
func (r *Repository[T, PT]) ForceCreate(ctx context.Context, e PT, actorID string) (PT, error) {
	if err := r.validateInputs(e, actorID); err != nil {
		return nil, err
	}
	if e.DocumentID() == "" {
		return nil, domain.NewValidationError("id", "force-create requires a pre-assigned id")
	}
	return r.create(ctx, e, actorID)
}

// GetByID returns the entity only if it exists and is active. Callers that
// need soft-deleted records must use GetAnyByID explicitly.
func (r *Repository[T, PT]) GetByID(ctx context.Context, id string) (PT, error) {
	e, err := r.GetAnyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.AuditFields().IsActive {
		return nil, fmt.Errorf("%s %q: inactive: %w", r.collection, id, domain.ErrNotFound)
	}
	return e, nil
}

// GetAnyByID returns the entity regardless of its soft-delete state.
func (r *Repository[T, PT]) GetAnyByID(ctx context.Context, id string) (PT, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}

	doc, err := r.store.GetDoc(ctx, r.collection, id)
	if err != nil {
		return nil, err
	}
	return r.unmarshal(doc, id)
}

// FindAll returns every active entity in the collection.
func (r *Repository[T, PT]) FindAll(ctx context.Context) ([]PT, error) {
	docs, err := r.store.ListDocs(ctx, r.collection, FieldBoolEq("isActive", true))
	if err != nil {
		return nil, err
	}
	return r.unmarshalAll(docs)
}

// FindByField returns active entities whose top-level field equals value.
// This is the convenience lookup path for a store with no joins.
func (r *Repository[T, PT]) FindByField(ctx context.Context, field, value string) ([]PT, error) {
	if field == "" {
		return nil, domain.NewValidationError("field", "must not be empty")
	}
	docs, err := r.store.ListDocs(ctx, r.collection,
		FieldEq(field, value),
		FieldBoolEq("isActive", true),
	)
	if err != nil {
		return nil, err
	}
	return r.unmarshalAll(docs)
}

// SoftDelete flips the entity inactive and stamps the envelope. Returns
// true if the record existed; deleting an already-deleted record is an
// idempotent no-op that still returns true.
func (r *Repository[T, PT]) SoftDelete(ctx context.Context, id, actorID string) (bool, error) {
	if err := domain.ValidateActorID(actorID); err != nil {
		return false, err
	}

	e, err := r.GetAnyByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	a := e.AuditFields()
	if !a.IsActive {
		r.log.Debug("soft delete on already-deleted record", "id", id)
		return true, nil
	}

	expected := a.Version
	a.MarkDeleted(actorID, r.now().UTC())
	if err := r.writeCAS(ctx, e, expected); err != nil {
		return false, err
	}
	return true, nil
}

// Restore reverses a soft delete. Returns true if the record existed;
// restoring an already-active record is an idempotent no-op.
func (r *Repository[T, PT]) Restore(ctx context.Context, id, actorID string) (bool, error) {
	if err := domain.ValidateActorID(actorID); err != nil {
		return false, err
	}

	e, err := r.GetAnyByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	a := e.AuditFields()
	if a.IsActive {
		r.log.Debug("restore on active record", "id", id)
		return true, nil
	}

	expected := a.Version
	a.MarkRestored(actorID, r.now().UTC())
	if err := r.writeCAS(ctx, e, expected); err != nil {
		return false, err
	}
	return true, nil
}

// HardDelete removes the record and its envelope permanently. Irreversible.
func (r *Repository[T, PT]) HardDelete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, domain.NewValidationError("id", "must not be empty")
	}
	return r.store.DeleteDoc(ctx, r.collection, id)
}

// ---------------------------------------------------------------------------
// Internal
// ---------------------------------------------------------------------------

func (r *Repository[T, PT]) create(ctx context.Context, e PT, actorID string) (PT, error) {
	a := e.AuditFields()
	if a.Initialized() {
		return nil, domain.NewValidationError("audit",
			"envelope already initialized; entity is not new")
	}
	a.InitAudit(actorID, r.now().UTC())

	doc, err := r.marshal(e)
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateDoc(ctx, r.collection, e.DocumentID(), doc); err != nil {
		return nil, err
	}

	r.log.Debug("created document", "id", e.DocumentID(), "actor", actorID)
	return e, nil
}

func (r *Repository[T, PT]) update(ctx context.Context, e PT, actorID string) (PT, error) {
	a := e.AuditFields()
	if !a.Initialized() {
		return nil, domain.NewValidationError("audit",
			"cannot update an entity without an initialized envelope")
	}
	if a.SoftDeleted() {
		return nil, domain.NewValidationError("audit",
			"cannot update a soft-deleted entity; restore it first")
	}

	expected := a.Version
	a.TouchAudit(actorID, r.now().UTC())
	if err := r.writeCAS(ctx, e, expected); err != nil {
		return nil, err
	}

	r.log.Debug("updated document", "id", e.DocumentID(), "actor", actorID, "version", a.Version)
	return e, nil
}

func (r *Repository[T, PT]) writeCAS(ctx context.Context, e PT, expectedVersion int64) error {
	doc, err := r.marshal(e)
	if err != nil {
		return err
	}
	return r.store.UpdateDocCAS(ctx, r.collection, e.DocumentID(), doc, expectedVersion)
}

func (r *Repository[T, PT]) marshal(e PT) ([]byte, error) {
	// Envelope presence is re-checked at the last gate before serialization.
	if !e.AuditFields().Initialized() {
		return nil, domain.NewValidationError("audit", "envelope missing before serialization")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%s %q: marshal: %w", r.collection, e.DocumentID(), err)
	}
	return doc, nil
}

func (r *Repository[T, PT]) unmarshal(doc []byte, id string) (PT, error) {
	var e T
	pe := PT(&e)
	if err := json.Unmarshal(doc, pe); err != nil {
		return nil, fmt.Errorf("%s %q: unmarshal: %w", r.collection, id, err)
	}
	if id != "" {
		pe.SetDocumentID(id)
	}
	return pe, nil
}

func (r *Repository[T, PT]) unmarshalAll(docs [][]byte) ([]PT, error) {
	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		e, err := r.unmarshal(doc, "")
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Repository[T, PT]) validateInputs(e PT, actorID string) error {
	if e == nil {
		return domain.NewValidationError("entity", "must not be nil")
	}
	return domain.ValidateActorID(actorID)
}

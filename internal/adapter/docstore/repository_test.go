package docstore_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/avoropay/accounts-core/internal/adapter/docstore"
	"github.com/avoropay/accounts-core/internal/adapter/docstore/testhelper"
	"github.com/avoropay/accounts-core/internal/domain"
)

func newUserRepository(t *testing.T) *docstore.Repository[domain.User, *domain.User] {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	store := docstore.NewStore(pool)
	return docstore.NewRepository[domain.User, *domain.User](store, "users", slog.Default())
}

func TestRepository_SaveCreate(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	u := &domain.User{Email: testhelper.UniqueEmail("create")}
	saved, err := repo.Save(ctx, u, "alice")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if saved.ID == "" {
		t.Fatal("expected generated document ID")
	}
	if saved.Version != 1 {
		t.Fatalf("expected version 1, got %d", saved.Version)
	}
	if saved.CreatedBy != "alice" || !saved.IsActive {
		t.Fatalf("unexpected envelope: %+v", saved.Audit)
	}

	got, err := repo.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Email != u.Email {
		t.Fatalf("expected email %q, got %q", u.Email, got.Email)
	}
}

func TestRepository_SaveUpdate(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	u := &domain.User{Email: testhelper.UniqueEmail("update")}
	saved, err := repo.Save(ctx, u, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	saved.DisplayName = "Renamed"
	updated, err := repo.Save(ctx, saved, "bob")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	if updated.ModifiedBy != "bob" || updated.CreatedBy != "alice" {
		t.Fatalf("unexpected attribution: %+v", updated.Audit)
	}

	got, err := repo.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DisplayName != "Renamed" {
		t.Fatalf("expected updated name, got %q", got.DisplayName)
	}
}

func TestRepository_StaleVersionConflict(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	u := &domain.User{Email: testhelper.UniqueEmail("conflict")}
	saved, err := repo.Save(ctx, u, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two loads of the same version; the second write must lose.
	first, err := repo.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := repo.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	first.DisplayName = "first writer"
	if _, err := repo.Save(ctx, first, "alice"); err != nil {
		t.Fatalf("first write: %v", err)
	}

	second.DisplayName = "second writer"
	_, err = repo.Save(ctx, second, "bob")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}
}

func TestRepository_ForceCreateDuplicate(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	id := uuid.NewString()
	u := &domain.User{ID: id, Email: testhelper.UniqueEmail("force")}
	if _, err := repo.ForceCreate(ctx, u, "alice"); err != nil {
		t.Fatalf("first ForceCreate: %v", err)
	}

	dup := &domain.User{ID: id, Email: testhelper.UniqueEmail("force-dup")}
	_, err := repo.ForceCreate(ctx, dup, "alice")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRepository_ForceCreateRequiresID(t *testing.T) {
	repo := newUserRepository(t)

	_, err := repo.ForceCreate(context.Background(),
		&domain.User{Email: testhelper.UniqueEmail("noid")}, "alice")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRepository_SoftDeleteRoundTrip(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	u := &domain.User{Email: testhelper.UniqueEmail("softdelete")}
	saved, err := repo.Save(ctx, u, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	existed, err := repo.SoftDelete(ctx, saved.ID, "bob")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !existed {
		t.Fatal("expected SoftDelete to report existing record")
	}

	// Default read no longer sees the record.
	if _, err := repo.GetByID(ctx, saved.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for soft-deleted record, got %v", err)
	}

	// The explicit any-state read still does.
	got, err := repo.GetAnyByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetAnyByID: %v", err)
	}
	if got.IsActive {
		t.Fatal("expected record to be inactive")
	}
	if got.ModifiedBy != "bob" {
		t.Fatalf("expected delete attribution to bob, got %q", got.ModifiedBy)
	}

	// Second delete is an idempotent no-op.
	existed, err = repo.SoftDelete(ctx, saved.ID, "bob")
	if err != nil || !existed {
		t.Fatalf("second SoftDelete: existed=%v err=%v", existed, err)
	}
	after, err := repo.GetAnyByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetAnyByID after second delete: %v", err)
	}
	if after.Version != got.Version {
		t.Fatalf("idempotent delete must not bump version: %d -> %d", got.Version, after.Version)
	}

	// Restore brings it back for default reads.
	existed, err = repo.Restore(ctx, saved.ID, "carol")
	if err != nil || !existed {
		t.Fatalf("Restore: existed=%v err=%v", existed, err)
	}
	restored, err := repo.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetByID after restore: %v", err)
	}
	if !restored.IsActive || restored.ModifiedBy != "carol" {
		t.Fatalf("unexpected envelope after restore: %+v", restored.Audit)
	}
}

func TestRepository_SoftDeleteMissing(t *testing.T) {
	repo := newUserRepository(t)

	existed, err := repo.SoftDelete(context.Background(), uuid.NewString(), "alice")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if existed {
		t.Fatal("expected SoftDelete of missing record to report false")
	}
}

func TestRepository_UpdateSoftDeletedRejected(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	u := &domain.User{Email: testhelper.UniqueEmail("deadwrite")}
	saved, err := repo.Save(ctx, u, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.SoftDelete(ctx, saved.ID, "alice"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	dead, err := repo.GetAnyByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetAnyByID: %v", err)
	}
	dead.DisplayName = "necromancy"
	_, err = repo.Save(ctx, dead, "alice")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for update of soft-deleted record, got %v", err)
	}
}

func TestRepository_FindByFieldSkipsInactive(t *testing.T) {
	repo := newUserRepository(t)
	ctx := context.Background()

	email := testhelper.UniqueEmail("findbyfield")
	saved, err := repo.Save(ctx, &domain.User{Email: email}, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.FindByField(ctx, "email", email)
	if err != nil {
		t.Fatalf("FindByField: %v", err)
	}
	if len(found) != 1 || found[0].ID != saved.ID {
		t.Fatalf("expected exactly the created record, got %d results", len(found))
	}

	if _, err := repo.SoftDelete(ctx, saved.ID, "alice"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	found, err = repo.FindByField(ctx, "email", email)
	if err != nil {
		t.Fatalf("FindByField after delete: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected soft-deleted record to be filtered, got %d results", len(found))
	}
}

func TestRepository_BlankActorRejected(t *testing.T) {
	repo := newUserRepository(t)

	_, err := repo.Save(context.Background(),
		&domain.User{Email: testhelper.UniqueEmail("blankactor")}, "  ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank actor, got %v", err)
	}
}

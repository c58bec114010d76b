package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

func createAccount(t *testing.T, s *Store, username string) *model.Account {
	t.Helper()
	a := &model.Account{Username: username, PasswordHash: "hash", Name: username}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount(%s): %v", username, err)
	}
	return a
}

func createTribute(t *testing.T, s *Store, accountID string) *model.Tribute {
	t.Helper()
	tr := &model.Tribute{AccountID: accountID, Content: "remembered"}
	if err := s.CreateTribute(context.Background(), tr); err != nil {
		t.Fatalf("CreateTribute: %v", err)
	}
	return tr
}

func TestCreateAccount_DuplicateUsername(t *testing.T) {
	s := New()
	createAccount(t, s, "alice")

	err := s.CreateAccount(context.Background(), &model.Account{Username: "alice"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateAccount() error = %v, want ErrConflict", err)
	}
}

func TestGetAccount_ReturnsCopy(t *testing.T) {
	s := New()
	a := createAccount(t, s, "alice")

	got, _ := s.GetAccountByID(context.Background(), a.ID)
	got.IsAdmin = true

	again, _ := s.GetAccountByID(context.Background(), a.ID)
	if again.IsAdmin {
		t.Error("mutating a returned account leaked into the store")
	}
}

func TestToggleCandle(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := createAccount(t, s, "u")
	tr := createTribute(t, s, u.ID)

	state, err := s.ToggleCandle(ctx, u.ID, tr.ID)
	if err != nil || !state.Lit || state.CandleCount != 1 {
		t.Fatalf("first toggle = %+v, %v; want lit/1", state, err)
	}
	state, err = s.ToggleCandle(ctx, u.ID, tr.ID)
	if err != nil || state.Lit || state.CandleCount != 0 {
		t.Fatalf("second toggle = %+v, %v; want unlit/0", state, err)
	}

	if _, err := s.ToggleCandle(ctx, u.ID, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleCandle(missing) error = %v, want ErrNotFound", err)
	}
}

func TestToggleCandle_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := createAccount(t, s, "owner")
	tr := createTribute(t, s, owner.ID)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ToggleCandle(ctx, owner.ID, tr.ID); err != nil {
				t.Errorf("ToggleCandle: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetTribute(ctx, tr.ID)
	candles, _ := s.ListCandles(ctx, tr.ID)
	if got.CandleCount != len(candles) {
		t.Errorf("CandleCount = %d, candles = %d", got.CandleCount, len(candles))
	}
	// 50 toggles by one account end unlit
	if got.CandleCount != 0 {
		t.Errorf("CandleCount = %d, want 0", got.CandleCount)
	}
}

func TestDeleteAccount_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	keeper := createAccount(t, s, "keeper")
	leaver := createAccount(t, s, "leaver")
	kept := createTribute(t, s, keeper.ID)
	gone := createTribute(t, s, leaver.ID)

	s.ToggleCandle(ctx, leaver.ID, kept.ID)
	s.ToggleCandle(ctx, keeper.ID, gone.ID)
	s.CreateSession(ctx, &model.Session{ID: "sess", AccountID: leaver.ID})

	if err := s.DeleteAccount(ctx, leaver.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	got, _ := s.GetTribute(ctx, kept.ID)
	if got.CandleCount != 0 {
		t.Errorf("kept.CandleCount = %d, want 0", got.CandleCount)
	}
	if _, err := s.GetTribute(ctx, gone.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetTribute(gone) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetSession(ctx, "sess"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession error = %v, want ErrNotFound", err)
	}
	// the username is free again
	createAccount(t, s, "leaver")
}

func TestListImages_OrderAndPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, order := range []int{2, 0, 1} {
		s.CreateImage(ctx, &model.GalleryImage{URL: "u", DisplayOrder: order, Featured: order > 0})
	}

	all, _ := s.ListImages(ctx, repository.ListOptions{})
	for i, img := range all {
		if img.DisplayOrder != i {
			t.Errorf("all[%d].DisplayOrder = %d", i, img.DisplayOrder)
		}
	}

	page, _ := s.ListImages(ctx, repository.ListOptions{Limit: 2, Offset: 2})
	if len(page) != 1 || page[0].DisplayOrder != 2 {
		t.Errorf("page = %+v, want the last image only", page)
	}
	past, _ := s.ListImages(ctx, repository.ListOptions{Offset: 10})
	if len(past) != 0 {
		t.Errorf("offset past end returned %d images", len(past))
	}

	featured, _ := s.ListFeaturedImages(ctx)
	if len(featured) != 2 || featured[0].DisplayOrder != 1 {
		t.Errorf("featured = %+v", featured)
	}
}

func TestSettingsAndProgram(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.UpsertSetting(ctx, "footerMessage", "v1")
	s.UpsertSetting(ctx, "footerMessage", "v2")
	all, _ := s.ListSettings(ctx)
	if len(all) != 1 || all[0].Value != "v2" {
		t.Errorf("ListSettings() = %+v, want one row with v2", all)
	}

	if _, err := s.GetProgram(ctx); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProgram() before save error = %v", err)
	}
	location, date := "Chapel", "2026-10-24"
	s.PatchProgram(ctx, model.ProgramPatch{Location: &location})
	s.PatchProgram(ctx, model.ProgramPatch{Date: &date})
	p, err := s.GetProgram(ctx)
	if err != nil || p.Location != "Chapel" || p.Date != "2026-10-24" {
		t.Errorf("GetProgram() = %+v, %v", p, err)
	}
}

func TestPatchProgram_ConcurrentFieldsAllKept(t *testing.T) {
	s := New()
	ctx := context.Background()

	values := []string{"2026-10-24", "14:00", "Chapel", "12 Elm St", "https://stream.example.com", "https://example.com/order.pdf", "Service and reception"}
	patches := []model.ProgramPatch{
		{Date: &values[0]},
		{Time: &values[1]},
		{Location: &values[2]},
		{Address: &values[3]},
		{StreamURL: &values[4]},
		{ProgramURL: &values[5]},
		{Description: &values[6]},
	}

	var wg sync.WaitGroup
	for _, patch := range patches {
		wg.Add(1)
		go func(patch model.ProgramPatch) {
			defer wg.Done()
			s.PatchProgram(ctx, patch)
		}(patch)
	}
	wg.Wait()

	p, err := s.GetProgram(ctx)
	if err != nil {
		t.Fatalf("GetProgram() error = %v", err)
	}
	got := []string{p.Date, p.Time, p.Location, p.Address, p.StreamURL, p.ProgramURL, p.Description}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], values[i])
		}
	}
}

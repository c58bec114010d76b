// Package memory implements repository.Store in process memory.
//
// It backs STORAGE_DRIVER=memory for local development and gives the
// service and handler tests a fast store without touching disk. One mutex
// guards every map, so each method is atomic with respect to the others,
// including ToggleCandle and the cascading deletes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type candleKey struct {
	accountID string
	tributeID string
}

type Store struct {
	mu sync.Mutex

	// now returns the timestamp stamped on new rows.
	now func() time.Time

	accounts  map[string]*model.Account
	usernames map[string]string // username -> account id
	sessions  map[string]*model.Session
	tributes  map[string]*model.Tribute
	candles   map[candleKey]model.Candle
	images    map[string]*model.GalleryImage
	settings  map[string]*model.Setting
	program   *model.FuneralProgram
}

func New() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		accounts:  make(map[string]*model.Account),
		usernames: make(map[string]string),
		sessions:  make(map[string]*model.Session),
		tributes:  make(map[string]*model.Tribute),
		candles:   make(map[candleKey]model.Candle),
		images:    make(map[string]*model.GalleryImage),
		settings:  make(map[string]*model.Setting),
	}
}

func (s *Store) newID() string { return xid.New().String() }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// paginate slices an already-ordered list.
func paginate[T any](items []T, opts repository.ListOptions) []T {
	opts = opts.Normalize()
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := opts.Offset + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-opts.Offset)
	copy(out, items[opts.Offset:end])
	return out
}

// =========================================================================
// ACCOUNTS
// =========================================================================

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[a.Username]; taken {
		return apperror.Conflict("account", a.Username)
	}
	now := s.now()
	a.ID = s.newID()
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := *a
	s.accounts[a.ID] = &stored
	s.usernames[a.Username] = a.ID
	return nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, apperror.NotFound("account", username)
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) ListAccounts(ctx context.Context, opts repository.ListOptions) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, opts), nil
}

func (s *Store) UpdateAccountRole(ctx context.Context, id string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	a.IsAdmin = isAdmin
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}

	for key := range s.candles {
		if key.accountID != id {
			continue
		}
		if t, ok := s.tributes[key.tributeID]; ok && t.CandleCount > 0 {
			t.CandleCount--
		}
		delete(s.candles, key)
	}
	for tid, t := range s.tributes {
		if t.AccountID == id {
			s.deleteTributeLocked(tid)
		}
	}
	for sid, sess := range s.sessions {
		if sess.AccountID == id {
			delete(s.sessions, sid)
		}
	}
	delete(s.usernames, a.Username)
	delete(s.accounts, id)
	return nil
}

// =========================================================================
// SESSIONS
// =========================================================================

func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteAccountSessions(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.AccountID == accountID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// =========================================================================
// TRIBUTES AND CANDLES
// =========================================================================

// withAuthor copies t and fills in the author's display name.
func (s *Store) withAuthor(t *model.Tribute) model.Tribute {
	cp := *t
	if a, ok := s.accounts[t.AccountID]; ok {
		cp.AuthorName = a.Name
	}
	return cp
}

func (s *Store) CreateTribute(ctx context.Context, t *model.Tribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.newID()
	t.CreatedAt = s.now()
	t.CandleCount = 0

	cp := *t
	s.tributes[t.ID] = &cp
	return nil
}

func (s *Store) GetTribute(ctx context.Context, id string) (*model.Tribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tributes[id]
	if !ok {
		return nil, apperror.NotFound("tribute", id)
	}
	cp := s.withAuthor(t)
	return &cp, nil
}

func (s *Store) ListTributes(ctx context.Context, opts repository.ListOptions) ([]model.Tribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.Tribute, 0, len(s.tributes))
	for _, t := range s.tributes {
		all = append(all, s.withAuthor(t))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, opts), nil
}

func (s *Store) DeleteTribute(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tributes[id]; !ok {
		return apperror.NotFound("tribute", id)
	}
	s.deleteTributeLocked(id)
	return nil
}

func (s *Store) deleteTributeLocked(id string) {
	for key := range s.candles {
		if key.tributeID == id {
			delete(s.candles, key)
		}
	}
	delete(s.tributes, id)
}

func (s *Store) ToggleCandle(ctx context.Context, accountID, tributeID string) (*model.CandleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tributes[tributeID]
	if !ok {
		return nil, apperror.NotFound("tribute", tributeID)
	}

	key := candleKey{accountID: accountID, tributeID: tributeID}
	state := &model.CandleState{TributeID: tributeID}
	if _, lit := s.candles[key]; lit {
		delete(s.candles, key)
		if t.CandleCount > 0 {
			t.CandleCount--
		}
	} else {
		s.candles[key] = model.Candle{AccountID: accountID, TributeID: tributeID, CreatedAt: s.now()}
		t.CandleCount++
		state.Lit = true
	}
	state.CandleCount = t.CandleCount
	return state, nil
}

func (s *Store) HasLitCandle(ctx context.Context, accountID, tributeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, lit := s.candles[candleKey{accountID: accountID, tributeID: tributeID}]
	return lit, nil
}

func (s *Store) LitTributeIDs(ctx context.Context, accountID string, tributeIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lit := make(map[string]bool, len(tributeIDs))
	for _, id := range tributeIDs {
		if _, ok := s.candles[candleKey{accountID: accountID, tributeID: id}]; ok {
			lit[id] = true
		}
	}
	return lit, nil
}

func (s *Store) ListCandles(ctx context.Context, tributeID string) ([]model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candles := []model.Candle{}
	for key, c := range s.candles {
		if key.tributeID == tributeID {
			candles = append(candles, c)
		}
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].CreatedAt.Before(candles[j].CreatedAt)
	})
	return candles, nil
}

// =========================================================================
// GALLERY
// =========================================================================

func (s *Store) CreateImage(ctx context.Context, img *model.GalleryImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	img.ID = s.newID()
	img.CreatedAt = now
	img.UpdatedAt = now

	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) GetImage(ctx context.Context, id string) (*model.GalleryImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return nil, apperror.NotFound("gallery image", id)
	}
	cp := *img
	return &cp, nil
}

func (s *Store) UpdateImage(ctx context.Context, img *model.GalleryImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.images[img.ID]
	if !ok {
		return apperror.NotFound("gallery image", img.ID)
	}
	img.CreatedAt = existing.CreatedAt
	img.UpdatedAt = s.now()

	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) DeleteImage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return apperror.NotFound("gallery image", id)
	}
	delete(s.images, id)
	return nil
}

// sortedImages returns the images matching keep in display order.
func (s *Store) sortedImages(keep func(*model.GalleryImage) bool) []model.GalleryImage {
	out := []model.GalleryImage{}
	for _, img := range s.images {
		if keep(img) {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (s *Store) ListImages(ctx context.Context, opts repository.ListOptions) ([]model.GalleryImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return paginate(s.sortedImages(func(*model.GalleryImage) bool { return true }), opts), nil
}

func (s *Store) ListFeaturedImages(ctx context.Context) ([]model.GalleryImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedImages(func(img *model.GalleryImage) bool { return img.Featured }), nil
}

// =========================================================================
// SETTINGS AND PROGRAM
// =========================================================================

func (s *Store) UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting := &model.Setting{Key: key, Value: value, UpdatedAt: s.now()}
	s.settings[key] = setting
	cp := *setting
	return &cp, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting, ok := s.settings[key]
	if !ok {
		return nil, apperror.NotFound("setting", key)
	}
	cp := *setting
	return &cp, nil
}

func (s *Store) ListSettings(ctx context.Context) ([]model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		out = append(out, *setting)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) GetProgram(ctx context.Context) (*model.FuneralProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program == nil {
		return nil, apperror.NotFound("funeral program", "1")
	}
	cp := *s.program
	return &cp, nil
}

func (s *Store) PatchProgram(ctx context.Context, patch model.ProgramPatch) (*model.FuneralProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program == nil {
		s.program = &model.FuneralProgram{}
	}
	patch.Apply(s.program)
	s.program.UpdatedAt = s.now()
	cp := *s.program
	return &cp, nil
}

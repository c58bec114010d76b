// Package repository declares the persistence contracts of the memorial.
//
// Two implementations live in subpackages: sqlite (the relational store)
// and memory (a process-local store for development and tests). Services
// only ever see these interfaces.
package repository

import (
	"context"

	"github.com/sakif/memorial/internal/model"
)

// Page size bounds shared by every list query.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps Limit into [1, MaxListLimit] (0 means default) and
// Offset to be non-negative.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type AccountRepository interface {
	// CreateAccount returns apperror.ErrConflict if the username is taken.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	ListAccounts(ctx context.Context, opts ListOptions) ([]model.Account, error)
	UpdateAccountRole(ctx context.Context, id string, isAdmin bool) error
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error
	// DeleteAccount removes the account and everything it owns in one unit:
	// its candles (decrementing the counts they contributed to), its
	// tributes with their candles, and its sessions.
	DeleteAccount(ctx context.Context, id string) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAccountSessions(ctx context.Context, accountID string) error
}

type TributeRepository interface {
	CreateTribute(ctx context.Context, tribute *model.Tribute) error
	GetTribute(ctx context.Context, id string) (*model.Tribute, error)
	// ListTributes returns tributes newest first.
	ListTributes(ctx context.Context, opts ListOptions) ([]model.Tribute, error)
	// DeleteTribute deletes the tribute's candles, then the tribute, atomically.
	DeleteTribute(ctx context.Context, id string) error

	// ToggleCandle flips the (account, tribute) candle and adjusts the
	// tribute's count in the same transaction.
	ToggleCandle(ctx context.Context, accountID, tributeID string) (*model.CandleState, error)
	HasLitCandle(ctx context.Context, accountID, tributeID string) (bool, error)
	// LitTributeIDs returns the subset of tributeIDs the account has lit.
	LitTributeIDs(ctx context.Context, accountID string, tributeIDs []string) (map[string]bool, error)
	ListCandles(ctx context.Context, tributeID string) ([]model.Candle, error)
}

type GalleryRepository interface {
	CreateImage(ctx context.Context, img *model.GalleryImage) error
	GetImage(ctx context.Context, id string) (*model.GalleryImage, error)
	UpdateImage(ctx context.Context, img *model.GalleryImage) error
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context, opts ListOptions) ([]model.GalleryImage, error)
	ListFeaturedImages(ctx context.Context) ([]model.GalleryImage, error)
}

type SettingRepository interface {
	// UpsertSetting inserts key or overwrites its value.
	UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error)
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	ListSettings(ctx context.Context) ([]model.Setting, error)
}

type ProgramRepository interface {
	// GetProgram returns apperror.ErrNotFound until the first save.
	GetProgram(ctx context.Context) (*model.FuneralProgram, error)
	// PatchProgram applies patch to the singleton row, creating it if
	// absent. The read and the write happen as one unit, so concurrent
	// patches to different fields are all kept.
	PatchProgram(ctx context.Context, patch model.ProgramPatch) (*model.FuneralProgram, error)
}

// Store is everything a backend must provide to run the site.
type Store interface {
	AccountRepository
	SessionRepository
	TributeRepository
	GalleryRepository
	SettingRepository
	ProgramRepository
	Ping(ctx context.Context) error
	Close() error
}

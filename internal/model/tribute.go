package model

import "time"

// MediaKind is the type of the optional attachment on a tribute.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is one of the known media kinds (or empty).
func (k MediaKind) Valid() bool {
	switch k {
	case MediaNone, MediaImage, MediaVideo:
		return true
	}
	return false
}

// Tribute is a message posted by an account on the memorial.
//
// CandleCount is denormalized: it must always equal the number of Candle
// rows for this tribute. Only the repository's candle toggle and cascade
// deletes change it.
type Tribute struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	AuthorName  string    `json:"authorName"` // joined from accounts on read
	Content     string    `json:"content"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	MediaKind   MediaKind `json:"mediaKind,omitempty"`
	CandleCount int       `json:"candleCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TributeView is a tribute annotated with the viewer's candle state.
type TributeView struct {
	Tribute
	HasLitCandle bool `json:"hasLitCandle"`
}

// Candle records that an account lit a candle on a tribute.
// At most one exists per (AccountID, TributeID).
type Candle struct {
	AccountID string    `json:"accountId"`
	TributeID string    `json:"tributeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CandleState is the outcome of a toggle: whether the caller's candle is
// now lit and the tribute's count after the change.
type CandleState struct {
	TributeID   string `json:"tributeId"`
	Lit         bool   `json:"lit"`
	CandleCount int    `json:"candleCount"`
}

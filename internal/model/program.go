package model

import "time"

// FuneralProgram holds the service details. There is at most one.
type FuneralProgram struct {
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Address     string    `json:"address"`
	StreamURL   string    `json:"streamUrl"`
	ProgramURL  string    `json:"programUrl"` // link to the printable PDF
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProgramPatch is a partial update: nil fields are left untouched.
type ProgramPatch struct {
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Location    *string `json:"location"`
	Address     *string `json:"address"`
	StreamURL   *string `json:"streamUrl"`
	ProgramURL  *string `json:"programUrl"`
	Description *string `json:"description"`
}

// Apply copies every non-nil field of p onto prog.
func (p ProgramPatch) Apply(prog *FuneralProgram) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&prog.Date, p.Date)
	set(&prog.Time, p.Time)
	set(&prog.Location, p.Location)
	set(&prog.Address, p.Address)
	set(&prog.StreamURL, p.StreamURL)
	set(&prog.ProgramURL, p.ProgramURL)
	set(&prog.Description, p.Description)
}

// Empty reports whether the patch changes nothing.
func (p ProgramPatch) Empty() bool {
	return p.Date == nil && p.Time == nil && p.Location == nil && p.Address == nil &&
		p.StreamURL == nil && p.ProgramURL == nil && p.Description == nil
}

package model

import (
	"fmt"
	"time"
)

// Setting is one key/value pair of site customization.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recognized setting keys. Writes with any other key are rejected.
const (
	SettingBackgroundImage = "backgroundImage" // header image URL
	SettingTributeImage    = "tributeImage"    // portrait URL
	SettingFooterMessage   = "footerMessage"
	SettingContactEmail    = "contactEmail"
	SettingContactPhone    = "contactPhone"
	SettingSiteTitle       = "siteTitle"
	SettingSubjectName     = "subjectName"
	SettingBiography       = "biography"
)

// ResourceSlots is how many footer resource links the site shows.
const ResourceSlots = 3

// ResourceNameKey returns the key of resource link name n (1-based).
func ResourceNameKey(n int) string { return fmt.Sprintf("resourceName%d", n) }

// ResourceLinkKey returns the key of resource link URL n (1-based).
func ResourceLinkKey(n int) string { return fmt.Sprintf("resourceLink%d", n) }

var knownSettings = func() map[string]bool {
	m := map[string]bool{
		SettingBackgroundImage: true,
		SettingTributeImage:    true,
		SettingFooterMessage:   true,
		SettingContactEmail:    true,
		SettingContactPhone:    true,
		SettingSiteTitle:       true,
		SettingSubjectName:     true,
		SettingBiography:       true,
	}
	for i := 1; i <= ResourceSlots; i++ {
		m[ResourceNameKey(i)] = true
		m[ResourceLinkKey(i)] = true
	}
	return m
}()

// IsKnownSetting reports whether key is a recognized setting key.
func IsKnownSetting(key string) bool {
	return knownSettings[key]
}

// ResourceLink is a named footer link.
type ResourceLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SiteSettings is the typed view of the settings table consumed by pages.
type SiteSettings struct {
	SiteTitle       string         `json:"siteTitle"`
	SubjectName     string         `json:"subjectName"`
	Biography       string         `json:"biography"`
	BackgroundImage string         `json:"backgroundImage"`
	TributeImage    string         `json:"tributeImage"`
	FooterMessage   string         `json:"footerMessage"`
	ContactEmail    string         `json:"contactEmail"`
	ContactPhone    string         `json:"contactPhone"`
	Resources       []ResourceLink `json:"resources"`
}

// NewSiteSettings builds the typed view from a raw key/value map.
// Resource slots with neither a name nor a link are skipped.
func NewSiteSettings(values map[string]string) SiteSettings {
	s := SiteSettings{
		SiteTitle:       values[SettingSiteTitle],
		SubjectName:     values[SettingSubjectName],
		Biography:       values[SettingBiography],
		BackgroundImage: values[SettingBackgroundImage],
		TributeImage:    values[SettingTributeImage],
		FooterMessage:   values[SettingFooterMessage],
		ContactEmail:    values[SettingContactEmail],
		ContactPhone:    values[SettingContactPhone],
		Resources:       []ResourceLink{},
	}
	for i := 1; i <= ResourceSlots; i++ {
		name, link := values[ResourceNameKey(i)], values[ResourceLinkKey(i)]
		if name == "" && link == "" {
			continue
		}
		s.Resources = append(s.Resources, ResourceLink{Name: name, URL: link})
	}
	return s
}

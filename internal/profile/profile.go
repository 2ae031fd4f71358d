// Package profile defines the MusiCard profile data model and validation.
package profile

import (
	"errors"
	"fmt"
	"time"
)

// MaxSongs is the maximum number of songs a profile may hold.
const MaxSongs = 20

// Validation errors.
var (
	ErrEmptyUsername   = errors.New("username must not be empty")
	ErrInvalidUsername = errors.New("username contains invalid characters")
	ErrTooManySongs    = fmt.Errorf("profile holds more than %d songs", MaxSongs)
	ErrInvalidTheme    = errors.New("unknown theme")
	ErrInvalidLayout   = errors.New("unknown grid layout")
)

// Theme is an enumerated color palette selection.
type Theme string

// Available themes.
const (
	ThemeMidnight Theme = "midnight"
	ThemeSunset   Theme = "sunset"
	ThemeForest   Theme = "forest"
	ThemeOcean    Theme = "ocean"
	ThemeMono     Theme = "mono"
)

// DefaultTheme is applied when a profile carries no theme.
const DefaultTheme = ThemeMidnight

// Themes lists every valid theme.
func Themes() []Theme {
	return []Theme{ThemeMidnight, ThemeSunset, ThemeForest, ThemeOcean, ThemeMono}
}

// ValidTheme reports whether t names a known theme.
func ValidTheme(t Theme) bool {
	switch t {
	case ThemeMidnight, ThemeSunset, ThemeForest, ThemeOcean, ThemeMono:
		return true
	}
	return false
}

// GridLayout is an enumerated grid configuration. It determines the square
// grid size and which cells are reserved for the profile icon.
type GridLayout string

// Available grid layouts.
const (
	LayoutGrid3x3       GridLayout = "grid-3x3"
	LayoutGrid4x4       GridLayout = "grid-4x4"
	LayoutGrid3x3Center GridLayout = "grid-3x3-center"
	LayoutGrid4x4Corner GridLayout = "grid-4x4-corner"
)

// DefaultLayout is applied when a profile carries no layout.
const DefaultLayout = LayoutGrid3x3

// ValidLayout reports whether l names a known grid layout.
func ValidLayout(l GridLayout) bool {
	switch l {
	case LayoutGrid3x3, LayoutGrid4x4, LayoutGrid3x3Center, LayoutGrid4x4Corner:
		return true
	}
	return false
}

// Cells returns the total cell count for the layout.
func (l GridLayout) Cells() int {
	switch l {
	case LayoutGrid4x4, LayoutGrid4x4Corner:
		return 16
	default:
		return 9
	}
}

// IconCells returns the cell indices reserved for the profile icon.
func (l GridLayout) IconCells() []int {
	switch l {
	case LayoutGrid3x3Center:
		return []int{4}
	case LayoutGrid4x4Corner:
		return []int{0}
	default:
		return nil
	}
}

// SocialLinks holds the optional social links of a profile.
type SocialLinks struct {
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Website   string `json:"website,omitempty"`
}

// Song is a single entry in a profile's song grid.
type Song struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	CoverURL    string `json:"coverUrl,omitempty"`
	Genre       string `json:"genre,omitempty"`
	ReleaseYear int    `json:"releaseYear,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
}

// Complete reports whether the song counts as a filled grid cell.
func (s Song) Complete() bool {
	return s.Title != "" && s.Artist != ""
}

// Profile is a user's music business card. The username is the immutable
// identity; everything else can be edited in place.
type Profile struct {
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName"`
	Bio         string      `json:"bio,omitempty"`
	IconURL     string      `json:"iconUrl,omitempty"`
	Theme       Theme       `json:"theme"`
	Layout      GridLayout  `json:"layout"`
	Social      SocialLinks `json:"social"`
	Songs       []Song      `json:"songs"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	ViewCount   int64       `json:"viewCount"`
	Public      bool        `json:"public"`
}

// Validate checks structural invariants. It normalizes a missing theme or
// layout to the defaults rather than rejecting them.
func (p *Profile) Validate() error {
	if p.Username == "" {
		return ErrEmptyUsername
	}
	if !validUsername(p.Username) {
		return ErrInvalidUsername
	}
	if len(p.Songs) > MaxSongs {
		return ErrTooManySongs
	}
	if p.Theme == "" {
		p.Theme = DefaultTheme
	} else if !ValidTheme(p.Theme) {
		return ErrInvalidTheme
	}
	if p.Layout == "" {
		p.Layout = DefaultLayout
	} else if !ValidLayout(p.Layout) {
		return ErrInvalidLayout
	}
	return nil
}

// CompleteSongs returns the songs with both title and artist set, in order.
func (p *Profile) CompleteSongs() []Song {
	out := make([]Song, 0, len(p.Songs))
	for _, s := range p.Songs {
		if s.Complete() {
			out = append(out, s)
		}
	}
	return out
}

// validUsername permits lowercase letters, digits, hyphen and underscore,
// so usernames are usable as URL path segments.
func validUsername(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

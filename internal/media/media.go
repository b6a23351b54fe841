// Package media defines the catalog item shape shared by the ranking engine,
// the catalog client and the HTTP layer.
package media

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes movies from TV shows. Item identity is (Kind, ID).
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// ParseKind accepts "movie", "tv" and the "show" alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return KindMovie, nil
	case "tv", "show":
		return KindTV, nil
	}
	return "", fmt.Errorf("media: unknown kind %q", s)
}

func (k Kind) Valid() bool { return k == KindMovie || k == KindTV }

// Key identifies an item across kinds; movie 42 and show 42 are distinct.
type Key struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (k Key) String() string { return fmt.Sprintf("%s:%d", k.Kind, k.ID) }

// Item is a movie or TV show as returned by the catalog. The core never
// mutates it.
type Item struct {
	ID   int64 `json:"id"`
	Kind Kind  `json:"kind"`
	// Title is the movie title or the show name, depending on Kind.
	Title        string   `json:"title"`
	OriginalName string   `json:"original_title,omitempty"`
	GenreIDs     []int    `json:"genre_ids"`
	Popularity   float64  `json:"popularity"`
	VoteAverage  float64  `json:"vote_average"`
	VoteCount    int      `json:"vote_count"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	Overview     string   `json:"overview,omitempty"`
	PosterPath   string   `json:"poster_path,omitempty"`
	BackdropPath string   `json:"backdrop_path,omitempty"`
	Runtime      int      `json:"runtime,omitempty"`
	Seasons      int      `json:"number_of_seasons,omitempty"`
	Languages    []string `json:"spoken_languages,omitempty"`
}

func (it Item) Key() Key { return Key{Kind: it.Kind, ID: it.ID} }

func (it Item) HasBackdrop() bool { return strings.TrimSpace(it.BackdropPath) != "" }

// Released parses ReleaseDate (YYYY-MM-DD). ok is false when the date is
// missing or malformed.
func (it Item) Released() (t time.Time, ok bool) {
	s := strings.TrimSpace(it.ReleaseDate)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Page is one page of a paginated catalog listing such as search results.
type Page struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
	Results      []Item `json:"results"`
}

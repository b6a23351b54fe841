package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/candidate"
)

var _ candidate.Provider = (*Client)(nil)

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type language struct {
	ISO639      string `json:"iso_639_1"`
	EnglishName string `json:"english_name"`
}

// result covers movie, show and multi-search rows; unused fields stay zero.
type result struct {
	ID              int64      `json:"id"`
	MediaType       string     `json:"media_type"`
	Title           string     `json:"title"`
	Name            string     `json:"name"`
	OriginalTitle   string     `json:"original_title"`
	OriginalName    string     `json:"original_name"`
	GenreIDs        []int      `json:"genre_ids"`
	Genres          []genre    `json:"genres"`
	Popularity      float64    `json:"popularity"`
	VoteAverage     float64    `json:"vote_average"`
	VoteCount       int        `json:"vote_count"`
	ReleaseDate     string     `json:"release_date"`
	FirstAirDate    string     `json:"first_air_date"`
	Overview        string     `json:"overview"`
	PosterPath      string     `json:"poster_path"`
	BackdropPath    string     `json:"backdrop_path"`
	Runtime         int        `json:"runtime"`
	NumberOfSeasons int        `json:"number_of_seasons"`
	SpokenLanguages []language `json:"spoken_languages"`
}

type listResponse struct {
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
	Results      []result `json:"results"`
}

func (r result) toItem(kind media.Kind) media.Item {
	it := media.Item{
		ID:           r.ID,
		Kind:         kind,
		GenreIDs:     r.GenreIDs,
		Popularity:   r.Popularity,
		VoteAverage:  r.VoteAverage,
		VoteCount:    r.VoteCount,
		Overview:     r.Overview,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		Runtime:      r.Runtime,
		Seasons:      r.NumberOfSeasons,
	}
	if kind == media.KindTV {
		it.Title, it.OriginalName, it.ReleaseDate = r.Name, r.OriginalName, r.FirstAirDate
	} else {
		it.Title, it.OriginalName, it.ReleaseDate = r.Title, r.OriginalTitle, r.ReleaseDate
	}
	// Details responses carry full genre objects instead of ids.
	if len(it.GenreIDs) == 0 && len(r.Genres) > 0 {
		it.GenreIDs = make([]int, 0, len(r.Genres))
		for _, g := range r.Genres {
			it.GenreIDs = append(it.GenreIDs, g.ID)
		}
	}
	for _, l := range r.SpokenLanguages {
		it.Languages = append(it.Languages, l.ISO639)
	}
	return it
}

func toItems(kind media.Kind, rs []result) []media.Item {
	out := make([]media.Item, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.toItem(kind))
	}
	return out
}

func (c *Client) list(ctx context.Context, kind media.Kind, path string, q url.Values) ([]media.Item, error) {
	resp, err := getJSON[listResponse](ctx, c, path, q)
	if err != nil {
		return nil, err
	}
	return toItems(kind, resp.Results), nil
}

func (c *Client) Trending(ctx context.Context, kind media.Kind, window candidate.Window) ([]media.Item, error) {
	if window == "" {
		window = candidate.WindowWeek
	}
	return c.list(ctx, kind, fmt.Sprintf("/trending/%s/%s", kind, window), nil)
}

func (c *Client) DiscoverByGenre(ctx context.Context, kind media.Kind, genreID int) ([]media.Item, error) {
	q := url.Values{}
	q.Set("with_genres", strconv.Itoa(genreID))
	q.Set("sort_by", "popularity.desc")
	return c.list(ctx, kind, "/discover/"+string(kind), q)
}

func (c *Client) Recommendations(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error) {
	return c.list(ctx, kind, fmt.Sprintf("/%s/%d/recommendations", kind, id), nil)
}

func (c *Client) Similar(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error) {
	return c.list(ctx, kind, fmt.Sprintf("/%s/%d/similar", kind, id), nil)
}

func (c *Client) HiddenGems(ctx context.Context, kind media.Kind, gq candidate.GemQuery) ([]media.Item, error) {
	q := url.Values{}
	q.Set("sort_by", "vote_average.desc")
	q.Set("vote_count.gte", strconv.Itoa(gq.MinVotes))
	q.Set("vote_count.lte", strconv.Itoa(gq.MaxVotes))
	q.Set("vote_average.gte", strconv.FormatFloat(gq.MinRating, 'f', -1, 64))
	if len(gq.GenreIDs) > 0 {
		ids := make([]string, len(gq.GenreIDs))
		for i, g := range gq.GenreIDs {
			ids[i] = strconv.Itoa(g)
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	return c.list(ctx, kind, "/discover/"+string(kind), q)
}

func (c *Client) Details(ctx context.Context, kind media.Kind, id int64) (media.Item, error) {
	r, err := getJSON[result](ctx, c, fmt.Sprintf("/%s/%d", kind, id), nil)
	if err != nil {
		return media.Item{}, err
	}
	return r.toItem(kind), nil
}

// Search runs a multi search. People and other non-title rows are dropped.
func (c *Client) Search(ctx context.Context, query string, page int) (media.Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	resp, err := getJSON[listResponse](ctx, c, "/search/multi", q)
	if err != nil {
		return media.Page{}, err
	}
	out := media.Page{Page: resp.Page, TotalPages: resp.TotalPages, TotalResults: resp.TotalResults, Results: []media.Item{}}
	for _, r := range resp.Results {
		kind, err := media.ParseKind(r.MediaType)
		if err != nil {
			continue
		}
		out.Results = append(out.Results, r.toItem(kind))
	}
	return out, nil
}

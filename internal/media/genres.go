package media

// Genre ids as used by the catalog. Movie and TV genres share one id space.
const (
	GenreAction          = 28
	GenreAdventure       = 12
	GenreAnimation       = 16
	GenreComedy          = 35
	GenreCrime           = 80
	GenreDocumentary     = 99
	GenreDrama           = 18
	GenreFamily          = 10751
	GenreFantasy         = 14
	GenreHistory         = 36
	GenreHorror          = 27
	GenreMusic           = 10402
	GenreMystery         = 9648
	GenreRomance         = 10749
	GenreSciFi           = 878
	GenreTVMovie         = 10770
	GenreThriller        = 53
	GenreWar             = 10752
	GenreWestern         = 37
	GenreActionAdventure = 10759
	GenreKids            = 10762
	GenreNews            = 10763
	GenreReality         = 10764
	GenreSciFiFantasy    = 10765
	GenreSoap            = 10766
	GenreTalk            = 10767
	GenreWarPolitics     = 10768
)

var genreNames = map[int]string{
	GenreAction:          "Action",
	GenreAdventure:       "Adventure",
	GenreAnimation:       "Animation",
	GenreComedy:          "Comedy",
	GenreCrime:           "Crime",
	GenreDocumentary:     "Documentary",
	GenreDrama:           "Drama",
	GenreFamily:          "Family",
	GenreFantasy:         "Fantasy",
	GenreHistory:         "History",
	GenreHorror:          "Horror",
	GenreMusic:           "Music",
	GenreMystery:         "Mystery",
	GenreRomance:         "Romance",
	GenreSciFi:           "Sci-Fi",
	GenreTVMovie:         "TV Movie",
	GenreThriller:        "Thriller",
	GenreWar:             "War",
	GenreWestern:         "Western",
	GenreActionAdventure: "Action & Adventure",
	GenreKids:            "Kids",
	GenreNews:            "News",
	GenreReality:         "Reality",
	GenreSciFiFantasy:    "Sci-Fi & Fantasy",
	GenreSoap:            "Soap",
	GenreTalk:            "Talk",
	GenreWarPolitics:     "War & Politics",
}

// GenreName returns the display name for id, or "" when unknown.
func GenreName(id int) string {
	return genreNames[id]
}

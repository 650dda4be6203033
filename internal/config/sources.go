package config

// DefaultSources returns the built-in source list.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name: "edunews",
			Type: SourceListing,
			URL:  "https://edunews.pl/aktualnosci",
			AllowSubstrings: []string{
				"/system-edukacji/",
				"/narzedzia-i-projekty/",
				"/edukacja-na-co-dzien/",
				"/nowoczesna-edukacja/",
				"/badania-i-debaty/",
				"/wydarzenia/",
			},
			AllowRegex: `https?://[^/]*edunews\.pl/.+?/\d{3,}-`,
		},
		{
			Name:            "frse-aktualnosci",
			Type:            SourceListing,
			URL:             "https://www.frse.org.pl/aktualnosci",
			AllowSubstrings: []string{"/aktualnosci/"},
		},
		{
			Name:            "frse-wydarzenia",
			Type:            SourceListing,
			URL:             "https://www.frse.org.pl/wydarzenia-i-szkolenia",
			AllowSubstrings: []string{"/wydarzenia-i-szkolenia/"},
		},
		{
			Name:            "youth-europa",
			Type:            SourceSitemap,
			URL:             "https://youth.europa.eu",
			PathContains:    []string{"/news/"},
			LangSuffix:      "_pl",
			FallbackListing: "https://youth.europa.eu/news_pl",
			FallbackAllow:   []string{"/news/"},
		},
		{
			Name:            "ibe",
			Type:            SourceListing,
			URL:             "https://ibe.edu.pl/pl/aktualnosci",
			AllowSubstrings: []string{"/pl/aktualnosci/"},
		},
	}
}

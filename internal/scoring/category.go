package scoring

import (
	"regexp"
	"strings"
	"sync"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// categoryKeywords maps a category bucket to the title keywords that select
// it. First matching category wins, in iteration order of the ordered list
// below; ESPORTS is checked before SPORTS so "league of legends" does not
// land in SPORTS via a generic keyword.
var categoryKeywords = map[string][]string{
	"POLITICS": {
		"president", "election", "trump", "biden", "congress", "senate",
		"governor", "democrat", "republican", "vote", "political", "minister",
		"parliament", "gop", "dnc", "rnc", "primary", "inaugur",
	},
	"CRYPTO": {
		"bitcoin", "btc", "ethereum", "eth", "crypto", "token", "defi",
		"blockchain", "solana", "sol", "nft", "coin", "binance", "mining",
	},
	"ESPORTS": {
		"league of legends", "dota", "csgo", "cs2", "counter-strike",
		"valorant", "overwatch", "esports", "e-sports", "starcraft",
		"lck", "lpl", "lec", "lcs", "worlds 20",
	},
	"SPORTS": {
		"nba", "nfl", "mlb", "nhl", "soccer", "football", "basketball",
		"baseball", "tennis", "ufc", "boxing", "championship", "super bowl",
		"world cup", "olympics", "playoff", "mvp",
	},
	"CULTURE": {
		"oscar", "grammy", "emmy", "movie", "film", "album", "spotify",
		"tiktok", "youtube", "celebrity", "twitter", "music", "award",
	},
	"WEATHER": {
		"hurricane", "temperature", "weather", "storm", "rain", "snow",
		"tornado", "flood", "climate",
	},
	"TECH": {
		"apple", "google", "microsoft", "openai", "ai ", "artificial intelligence",
		"spacex", "tesla", "launch", "iphone", "chip",
	},
	"FINANCE": {
		"stock", "s&p", "nasdaq", "fed", "interest rate", "inflation",
		"gdp", "recession", "earnings", "ipo",
	},
}

// categoryOrder fixes the match priority across categories.
var categoryOrder = []string{
	"POLITICS", "CRYPTO", "ESPORTS", "SPORTS", "CULTURE", "WEATHER", "TECH", "FINANCE",
}

var (
	boundaryCache   = map[string]*regexp.Regexp{}
	boundaryCacheMu sync.RWMutex
)

// keywordMatch reports whether keyword occurs in the lower-cased text. Short
// keywords (<= 4 chars) require word boundaries so "sol" does not match
// "solution".
func keywordMatch(keyword, textLower string) bool {
	if len(keyword) > 4 {
		return strings.Contains(textLower, keyword)
	}

	boundaryCacheMu.RLock()
	re, ok := boundaryCache[keyword]
	boundaryCacheMu.RUnlock()
	if !ok {
		re = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
		boundaryCacheMu.Lock()
		boundaryCache[keyword] = re
		boundaryCacheMu.Unlock()
	}
	return re.MatchString(textLower)
}

// ClassifyCategory maps a market title to its category bucket. Titles that
// match nothing fall into domain.CategoryOther; the result is never empty.
func ClassifyCategory(title string) string {
	if title == "" {
		return domain.CategoryOther
	}
	lower := strings.ToLower(title)
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if keywordMatch(kw, lower) {
				return cat
			}
		}
	}
	return domain.CategoryOther
}

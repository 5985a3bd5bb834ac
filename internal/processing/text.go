package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	tagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {},
	"and": {}, "or": {}, "of": {}, "on": {}, "at": {}, "by": {},
	"with": {}, "from": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"that": {}, "this": {}, "its": {}, "has": {}, "have": {}, "will": {},
}

// NormalizeText unescapes HTML entities, strips markup and squeezes
// whitespace. Punctuation and URLs are kept, so the result is still fit for
// display.
func NormalizeText(input string) string {
	if input == "" {
		return ""
	}
	out := html.UnescapeString(input)
	out = tagRegex.ReplaceAllString(out, " ")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// ExtractURLs extracts all HTTP(S) URLs from the input text.
func ExtractURLs(input string) []string {
	if input == "" {
		return nil
	}
	matches := urlRegex.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, url := range matches {
		if _, ok := seen[url]; !ok {
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
	}
	return urls
}

// CleanText reduces the input to words only: markup, URLs and punctuation
// are removed. Used for keyword extraction and document IDs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	out := NormalizeText(input)
	out = urlRegex.ReplaceAllString(out, " ")
	out = punctuation.ReplaceAllString(out, " ")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	n := limit
	if n <= 0 || n > len(pairs) {
		n = len(pairs)
	}

	keywords := make([]string, 0, n)
	for _, p := range pairs[:n] {
		keywords = append(keywords, p.word)
	}
	return keywords
}

// BuildDocumentID hashes the article URL, falling back to its title when the
// item has no URL, so reprocessing the same article overwrites one document.
func BuildDocumentID(url, title string) string {
	key := strings.TrimSpace(url)
	if key == "" {
		key = "title|" + strings.ToLower(CleanText(title))
	}
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}

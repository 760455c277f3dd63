package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Obfuscated addresses like "info [at] acme [dot] com" are matched as a whole
// and then de-obfuscated piecewise.
var (
	obfuscatedEmailRe = regexp.MustCompile(`(?i)[A-Za-z0-9._%+-]+\s?(?:\[at\]|\(at\)|at)\s?[A-Za-z0-9.-]+\s?(?:\[dot\]|\(dot\)|dot)\s?[A-Za-z]{2,}`)
	obfuscatedAtRe    = regexp.MustCompile(`(?i)\s?(?:\[at\]|\(at\)| at )\s?`)
	obfuscatedDotRe   = regexp.MustCompile(`(?i)\s?(?:\[dot\]|\(dot\)| dot )\s?`)
)

// Emails returns every address found in text, lowercased and deduplicated in
// first-seen order.
func Emails(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		addr = strings.ToLower(addr)
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	for _, m := range emailRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range obfuscatedEmailRe.FindAllString(text, -1) {
		clean := obfuscatedAtRe.ReplaceAllString(m, "@")
		clean = obfuscatedDotRe.ReplaceAllString(clean, ".")
		if emailRe.MatchString(clean) {
			add(clean)
		}
	}
	return out
}

var phoneRe = regexp.MustCompile(`\+?\d[\d\s().-]{6,20}`)

var phoneDigitRe = regexp.MustCompile(`[^\d+]`)

var phoneKeywords = []string{"phone", "telefon", "tel", "kapcsolat", "call", "contact", "mobil"}

// Phones scans text near phone-related keywords and returns up to three
// normalized numbers, best first. Scanning the whole page finds order numbers
// and coordinates; a window around the keywords keeps precision up.
func Phones(text string) []string {
	lower := strings.ToLower(text)
	var blocks []string
	for _, kw := range phoneKeywords {
		if idx := strings.Index(lower, kw); idx != -1 {
			start := max(0, idx-80)
			end := min(len(text), idx+120)
			blocks = append(blocks, text[start:end])
		}
	}
	if len(blocks) == 0 {
		blocks = []string{text[:min(len(text), 2000)]}
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, block := range blocks {
		for _, m := range phoneRe.FindAllString(block, -1) {
			num := phoneDigitRe.ReplaceAllString(m, "")
			digits := strings.TrimPrefix(num, "+")
			if len(digits) < 7 || len(digits) > 15 {
				continue
			}
			num = normalizePhone(num)
			if !seen[num] {
				seen[num] = true
				candidates = append(candidates, num)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return phoneScore(candidates[i]) > phoneScore(candidates[j])
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}

// normalizePhone rewrites domestic 06-prefixed numbers to +36 form.
func normalizePhone(num string) string {
	if strings.HasPrefix(num, "06") {
		return "+36" + num[2:]
	}
	return num
}

func phoneScore(num string) int {
	s := 0
	switch {
	case strings.HasPrefix(num, "+36"):
		s += 3
	case strings.HasPrefix(num, "06"):
		s += 2
	}
	if len(num) >= 9 {
		s++
	}
	switch {
	case strings.HasPrefix(num, "+3620"), strings.HasPrefix(num, "+3630"), strings.HasPrefix(num, "+3670"):
		s += 2
	}
	return s
}

// Platform names for social link extraction, in output-column order.
const (
	PlatformWhatsApp  = "whatsapp"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
	PlatformTikTok    = "tiktok"
	PlatformSnapchat  = "snapchat"
)

var socialPatterns = map[string][]*regexp.Regexp{
	PlatformFacebook: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?facebook\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?fb\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?m\.facebook\.com/[A-Za-z0-9._-]+/?`),
	},
	PlatformInstagram: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?instagr\.am/[A-Za-z0-9._-]+/?`),
	},
	PlatformLinkedIn: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/(?:in|company)/[A-Za-z0-9._-]+/?`),
	},
	PlatformTwitter: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?twitter\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?x\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?t\.co/[A-Za-z0-9._-]+/?`),
	},
	PlatformTikTok: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/@[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://vm\.tiktok\.com/[A-Za-z0-9._-]+/?`),
	},
	PlatformSnapchat: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?snapchat\.com/add/[A-Za-z0-9._-]+/?`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?snapchat\.com/[A-Za-z0-9._-]+/?`),
	},
	PlatformWhatsApp: {
		regexp.MustCompile(`(?i)https?://(?:www\.)?wa\.me/[0-9+]+/?`),
		regexp.MustCompile(`(?i)https?://api\.whatsapp\.com/send\S*`),
	},
}

// SocialLinks finds the first matching URL per platform in raw page content.
// Presence is binary; the first hit on the page wins.
func SocialLinks(content string) map[string]string {
	out := make(map[string]string)
	for platform, patterns := range socialPatterns {
		for _, re := range patterns {
			if m := re.FindString(content); m != "" {
				if !strings.HasPrefix(strings.ToLower(m), "http") {
					m = "https://" + m
				}
				out[platform] = m
				break
			}
		}
	}
	return out
}

// AnchorContacts pulls mailto: and tel: targets out of anchor hrefs. These
// are higher-precision than body-text matches since someone wired them up
// deliberately.
func AnchorContacts(doc *goquery.Document) (emails, phones []string) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[7:]
			if i := strings.IndexByte(addr, '?'); i != -1 {
				addr = addr[:i]
			}
			if addr = strings.ToLower(strings.TrimSpace(addr)); addr != "" {
				emails = append(emails, addr)
			}
		case strings.HasPrefix(lower, "tel:"):
			num := phoneDigitRe.ReplaceAllString(href[4:], "")
			digits := strings.TrimPrefix(num, "+")
			if len(digits) >= 7 && len(digits) <= 15 {
				phones = append(phones, normalizePhone(num))
			}
		}
	})
	return emails, phones
}

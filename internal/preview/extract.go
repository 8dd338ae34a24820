// Package preview resolves one representative image per linked story page
// and schedules that work as cards scroll into view.
package preview

import (
	"net/url"
	"regexp"
	"strings"
)

// Image scoring weights for the fallback <img> pass. Empirically tuned
// upstream; changing them shifts which image wins on pages without social
// meta tags.
const (
	heroKeywordBonus   = 15
	badKeywordPenalty  = 25
	widthDivisor       = 50
	widthBonusCap      = 12
	heightDivisor      = 80
	heightBonusCap     = 8
	narrowWidthLimit   = 80
	narrowWidthPenalty = 20
	acceptThreshold    = 5
)

var (
	metaTagRe  = regexp.MustCompile(`(?i)<meta\b([^>]*)>`)
	ogPropRe   = regexp.MustCompile(`(?i)(?:property|name)\s*=\s*["']og:image(?::secure_url|:url)?["']`)
	twPropRe   = regexp.MustCompile(`(?i)(?:property|name)\s*=\s*["']twitter:image(?::src)?["']`)
	contentRe  = regexp.MustCompile(`(?i)\bcontent\s*=\s*["']([^"']+)["']`)
	imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|avif|svg)(\?|$)`)
	assetExtRe = regexp.MustCompile(`(?i)\.(js|css|html?)(\?|$)`)

	imgTagRe    = regexp.MustCompile(`(?i)<img\b([^>]*)>`)
	imgSrcRe    = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
	imgWidthRe  = regexp.MustCompile(`(?i)\bwidth\s*=\s*["']?(\d+)`)
	imgHeightRe = regexp.MustCompile(`(?i)\bheight\s*=\s*["']?(\d+)`)
	svgExtRe    = regexp.MustCompile(`(?i)\.svg(\?|$)`)

	heroKeywordRe = regexp.MustCompile(`(?i)hero|banner|cover|feature|article|post|thumb|social|preview|splash|header`)
	badKeywordRe  = regexp.MustCompile(`(?i)icon|logo|avatar|sprite|pixel|1x1|spacer|button|badge|flag|emoji`)
)

// ExtractImage scans fetched markup for the best preview image URL,
// resolved against base. The meta-tag pass wins outright when it finds a
// qualifying og:image/twitter:image; otherwise <img> tags are scored and the
// best candidate above the acceptance threshold is returned. The boolean is
// false when no image qualifies.
//
// This is deliberate text-pattern scanning, not an HTML parse: tags may span
// lines, attributes may use either quote style, and nothing else about the
// document matters.
func ExtractImage(markup string, base *url.URL) (string, bool) {
	if src, ok := extractMetaImage(markup, base); ok {
		return src, ok
	}
	return extractFallbackImage(markup, base)
}

// extractMetaImage returns the first og:image / twitter:image meta tag in
// document order whose content survives the accept rules.
func extractMetaImage(markup string, base *url.URL) (string, bool) {
	for _, tag := range metaTagRe.FindAllStringSubmatch(markup, -1) {
		attrs := tag[1]
		if !ogPropRe.MatchString(attrs) && !twPropRe.MatchString(attrs) {
			continue
		}
		cm := contentRe.FindStringSubmatch(attrs)
		if cm == nil || cm[1] == "" || strings.HasPrefix(cm[1], "data:") {
			continue
		}
		resolved, ok := resolveRef(base, cm[1])
		if !ok {
			continue
		}
		// Accept known image extensions or anything that merely mentions
		// "image"; reject only obvious script/style/markup targets.
		if imageExtRe.MatchString(resolved) ||
			strings.Contains(strings.ToLower(resolved), "image") ||
			!assetExtRe.MatchString(resolved) {
			return resolved, true
		}
	}
	return "", false
}

// extractFallbackImage scores every <img> tag and returns the best candidate
// at or above the acceptance threshold.
func extractFallbackImage(markup string, base *url.URL) (string, bool) {
	best := ""
	bestScore := -99.0

	for _, tag := range imgTagRe.FindAllStringSubmatch(markup, -1) {
		attrs := tag[1]
		srcM := imgSrcRe.FindStringSubmatch(attrs)
		if srcM == nil || srcM[1] == "" ||
			strings.HasPrefix(srcM[1], "data:") || svgExtRe.MatchString(srcM[1]) {
			continue
		}
		src := srcM[1]

		score := 0.0
		if heroKeywordRe.MatchString(src) {
			score += heroKeywordBonus
		}
		if badKeywordRe.MatchString(src) {
			score -= badKeywordPenalty
		}
		width, hasWidth := attrInt(imgWidthRe, attrs)
		if hasWidth {
			score += min(float64(width)/widthDivisor, widthBonusCap)
		}
		if height, ok := attrInt(imgHeightRe, attrs); ok {
			score += min(float64(height)/heightDivisor, heightBonusCap)
		}
		if hasWidth && width < narrowWidthLimit {
			score -= narrowWidthPenalty
		}

		if score > bestScore {
			bestScore = score
			best = src
		}
	}

	if best == "" || bestScore < acceptThreshold {
		return "", false
	}
	return resolveRef(base, best)
}

func attrInt(re *regexp.Regexp, attrs string) (int, bool) {
	m := re.FindStringSubmatch(attrs)
	if m == nil {
		return 0, false
	}
	n := 0
	for _, r := range m[1] {
		n = n*10 + int(r-'0')
		if n > 1<<20 {
			return 1 << 20, true
		}
	}
	return n, true
}

func resolveRef(base *url.URL, ref string) (string, bool) {
	if base == nil {
		u, err := url.Parse(ref)
		if err != nil || !u.IsAbs() {
			return "", false
		}
		return u.String(), true
	}
	u, err := base.Parse(ref)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

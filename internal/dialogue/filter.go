package dialogue

import "regexp"

var (
	hangulRe = regexp.MustCompile(`[가-힣]`)
	noiseRe  = regexp.MustCompile(`https?://|총\s*금액`)
)

// IsValid reports whether msg is substantive Korean conversation: it must
// contain a Hangul syllable and neither a URL nor a payment total.
func IsValid(msg string) bool {
	return hangulRe.MatchString(msg) && !noiseRe.MatchString(msg)
}

// Package cost computes the billable cost of a synthesis request.
// All functions are pure: same input always produces the same output.
package cost

import (
	"regexp"
	"unicode/utf16"

	"github.com/artpar/speechgate/domain/voice"
)

// markupTag matches any speech-markup element, opening or closing.
var markupTag = regexp.MustCompile(`<[^<>]*>`)

// annotationMark matches only <mark .../> annotation elements. Character
// billing strips these and nothing else; the provider does not charge for
// timing marks but does charge for every other markup element.
var annotationMark = regexp.MustCompile(`<mark\b[^<>]*/?>`)

// Estimate is the billable cost of one request. Known is false when the
// voice did not match any configured tier and the default tier was used.
type Estimate struct {
	Count int64
	Tier  voice.Tier
	Unit  voice.Unit
	Known bool
}

// Count computes the billable cost of text for the given voice.
//
// Byte-billed tiers are charged the UTF-8 byte length of the spoken text:
// when markup mode is set, all markup elements are stripped first; raw text
// is counted as-is. Character-billed tiers are charged in UTF-16 code units
// after stripping only annotation marks — this deliberately differs from
// the byte rule and must not be unified, since it changes what is billed.
func Count(text string, voiceID string, markupMode bool, reg voice.Registry) Estimate {
	tier, known := reg.Resolve(voiceID)

	var n int64
	switch tier.Unit {
	case voice.UnitCharacters:
		n = CharacterCount(text)
	default:
		n = ByteCount(text, markupMode)
	}

	return Estimate{Count: n, Tier: tier, Unit: tier.Unit, Known: known}
}

// ByteCount returns the UTF-8 byte length of text. When markup is true,
// all markup elements are stripped first so only spoken text is counted.
func ByteCount(text string, markup bool) int64 {
	if markup {
		text = markupTag.ReplaceAllString(text, "")
	}
	return int64(len(text))
}

// CharacterCount returns the length of text in UTF-16 code units after
// stripping annotation marks.
func CharacterCount(text string) int64 {
	stripped := annotationMark.ReplaceAllString(text, "")
	var n int64
	for _, r := range stripped {
		n += int64(len(utf16.Encode([]rune{r})))
	}
	return n
}

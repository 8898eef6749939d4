package docgen

import "regexp"

// TranscriptToken is the placeholder the dictated transcript replaces.
const TranscriptToken = "transcript"

var tokenPattern = regexp.MustCompile(`\{[a-zA-Z][a-zA-Z0-9_]*\}`)

// Substitute fills {token} placeholders from the field map, with the
// transcript bound to {transcript}. Unknown tokens are left intact so a
// half-filled document is visibly half-filled rather than silently blanked.
func Substitute(template string, fields map[string]string, transcript string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if name == TranscriptToken {
			return transcript
		}
		if value, ok := fields[name]; ok {
			return value
		}
		return match
	})
}

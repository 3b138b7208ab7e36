package parsers

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aegis-safety/intake/internal/agent/model"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxTags       = 64
)

// tagRe matches the bracketed summary grammar `[field_name]:{value}`.
var tagRe = regexp.MustCompile(`\[([A-Za-z0-9_ \-]+)\]\s*:\s*\{([^{}]*)\}`)

// Extractor reads structured complaint fields from the final message of a
// transcript. It is a narrow parser for the one reply grammar the interviewer
// directive asks for; phrasing drift upstream shows up as missing fields.
type Extractor struct {
	set  CueSet
	cues []compiledCue
}

func NewExtractor(set CueSet) (*Extractor, error) {
	cues, err := compileCues(set)
	if err != nil {
		return nil, err
	}
	return &Extractor{set: set, cues: cues}, nil
}

// MustNewExtractor panics on an invalid cue set.
func MustNewExtractor(set CueSet) *Extractor {
	x, err := NewExtractor(set)
	if err != nil {
		panic(err)
	}
	return x
}

// Cues returns the cue set the extractor was built from.
func (x *Extractor) Cues() CueSet {
	return x.set
}

// Extract must be given the complete transcript: only its last turn is
// scanned for the cue fields. It never fails; an empty transcript or a final
// message without the expected grammar yields empty fields.
func (x *Extractor) Extract(transcript []model.Turn) (out model.ExtractedComplaint) {
	out = model.ExtractedComplaint{
		Transcript: numberTranscript(transcript),
		TurnCount:  len(transcript),
	}

	if len(transcript) == 0 {
		out.Missing = x.fields()
		return out
	}

	content := transcript[len(transcript)-1].Content

	// panic safety: keep the transcript, drop whatever was matched
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "complaint_parser").Msgf("panic recovered: %v", r)
			out = model.ExtractedComplaint{
				Transcript: out.Transcript,
				TurnCount:  out.TurnCount,
				Missing:    x.fields(),
			}
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "complaint_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = truncate(content, maxContentLen)
	}

	for _, c := range x.cues {
		// first match per field wins
		if out.Field(c.Field) != "" {
			continue
		}
		if v := c.match(content); v != "" {
			out.SetField(c.Field, v)
		}
	}
	for _, f := range x.fields() {
		if out.Field(f) == "" {
			out.Missing = append(out.Missing, f)
		}
	}

	out.Tags = parseTags(content)
	out.Report = out.Tags["report"]

	if len(out.Missing) > 0 {
		logx.Debug().
			Str("component", "complaint_parser").
			Strs("missing", out.Missing).
			Msg("summary message lacks some cue fields")
	}
	return out
}

// fields lists the distinct cue fields in cue order.
func (x *Extractor) fields() []string {
	seen := make(map[string]bool, len(x.cues))
	fields := make([]string, 0, len(x.cues))
	for _, c := range x.cues {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func numberTranscript(turns []model.Turn) []model.TranscriptEntry {
	entries := make([]model.TranscriptEntry, 0, len(turns))
	for i, t := range turns {
		entries = append(entries, model.TranscriptEntry{ID: i + 1, Role: t.Role, Message: t.Content})
	}
	return entries
}

// parseTags collects `[key]:{value}` pairs. Keys are lower-cased with spaces
// and hyphens folded to underscores; the first occurrence of a key wins.
func parseTags(content string) map[string]string {
	matches := tagRe.FindAllStringSubmatch(content, maxTags)
	if len(matches) == 0 {
		return nil
	}
	tags := make(map[string]string, len(matches))
	for _, m := range matches {
		key := normalizeTagKey(m[1])
		if key == "" {
			continue
		}
		if _, ok := tags[key]; ok {
			continue
		}
		tags[key] = strings.TrimSpace(m[2])
	}
	return tags
}

func normalizeTagKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

package parsers

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aegis-safety/intake/internal/agent/model"
	"gopkg.in/yaml.v3"
)

// Cue anchors one field to the phrase that precedes its value in the
// interviewer's final summary. Pattern is the value grammar; the span ends
// at the first Stop marker and Trim characters are cut from its right end.
type Cue struct {
	Field   string   `yaml:"field"`
	Phrase  string   `yaml:"phrase"`
	Pattern string   `yaml:"pattern"`
	Stops   []string `yaml:"stops,omitempty"`
	Trim    string   `yaml:"trim,omitempty"`
	// Example is the placeholder shown to the backend in the directive.
	Example string `yaml:"example,omitempty"`
}

type CueSet struct {
	Cues []Cue `yaml:"cues"`
}

// DefaultCues is the grammar the interviewer directive asks for.
func DefaultCues() CueSet {
	return CueSet{Cues: []Cue{
		{
			Field:   model.FieldName,
			Phrase:  "name is",
			Pattern: `[A-Za-z\s'\-]+`,
			Stops:   []string{" and "},
			Trim:    " ",
			Example: "<full name>",
		},
		{
			Field:   model.FieldPhone,
			Phrase:  "phone number is",
			Pattern: `\+\d{1,3}\s\d{5}\s\d{5}`,
			Example: "+<country code> <5 digits> <5 digits>",
		},
		{
			Field:   model.FieldLocation,
			Phrase:  "live at",
			Pattern: `[\d\sA-Za-z.,\-]+`,
			// periods belong to addresses ("No. 12", "St. Mary"); a
			// sentence-final one is trimmed
			Stops:   []string{", and "},
			Trim:    " ,.",
			Example: "<address>",
		},
		{
			Field:   model.FieldIncidentDate,
			Phrase:  "on",
			Pattern: `\d{1,2}\s[A-Za-z]+\s\d{4}\sat\s\d{2}:\d{2}:\d{2}\sUTC[+-]\d{1,2}(?::\d{2})?`,
			Example: "<D Month YYYY> at <HH:MM:SS> UTC<+H>",
		},
	}}
}

// LoadCues reads a YAML cue file.
func LoadCues(path string) (CueSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CueSet{}, fmt.Errorf("read cue file: %w", err)
	}
	return ParseCues(data)
}

// ParseCues decodes and validates a YAML cue set.
func ParseCues(data []byte) (CueSet, error) {
	var set CueSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return CueSet{}, fmt.Errorf("decode cue file: %w", err)
	}
	if _, err := compileCues(set); err != nil {
		return CueSet{}, err
	}
	return set, nil
}

type compiledCue struct {
	Cue
	re *regexp.Regexp
}

func compileCues(set CueSet) ([]compiledCue, error) {
	if len(set.Cues) == 0 {
		return nil, fmt.Errorf("cue set is empty")
	}
	var probe model.ExtractedComplaint
	out := make([]compiledCue, 0, len(set.Cues))
	for i, c := range set.Cues {
		if !probe.SetField(c.Field, "") {
			return nil, fmt.Errorf("cue %d: unknown field %q", i, c.Field)
		}
		phrase := strings.TrimSpace(c.Phrase)
		if phrase == "" {
			return nil, fmt.Errorf("cue %d (%s): phrase is empty", i, c.Field)
		}
		if strings.TrimSpace(c.Pattern) == "" {
			return nil, fmt.Errorf("cue %d (%s): pattern is empty", i, c.Field)
		}
		re, err := regexp.Compile(cueExpr(phrase, c.Pattern))
		if err != nil {
			return nil, fmt.Errorf("cue %d (%s): %w", i, c.Field, err)
		}
		c.Phrase = phrase
		out = append(out, compiledCue{Cue: c, re: re})
	}
	return out, nil
}

// cueExpr builds `<phrase>\s+(<pattern>)`, anchored on a word boundary when
// the phrase starts with a word character so "on" does not fire inside "Menon".
func cueExpr(phrase, pattern string) string {
	var b strings.Builder
	if isWordByte(phrase[0]) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(phrase))
	b.WriteString(`\s+(`)
	b.WriteString(pattern)
	b.WriteString(`)`)
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (c compiledCue) match(content string) string {
	m := c.re.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	v := m[1]
	for _, stop := range c.Stops {
		if stop == "" {
			continue
		}
		if idx := strings.Index(v, stop); idx >= 0 {
			v = v[:idx]
		}
	}
	if c.Trim != "" {
		v = strings.TrimRight(v, c.Trim)
	}
	return strings.TrimSpace(v)
}

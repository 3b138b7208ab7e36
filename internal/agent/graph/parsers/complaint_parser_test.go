package parsers

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ashaSummary = "Thank you. To confirm, your name is Asha Menon, your phone number is +91 98765 43210, " +
	"you live at 12 MG Road, Kochi, and the incident occurred on 5 March 2024 at 14:30:00 UTC+5:30. " +
	"[report]:{A caller impersonating a bank officer obtained an OTP and debited Rs 40,000.}"

func ashaTranscript() []model.Turn {
	return []model.Turn{
		model.UserTurn("I want to report a fraud"),
		model.AssistantTurn("I'm sorry to hear that. What is your name?"),
		model.UserTurn("Asha Menon"),
		model.AssistantTurn(ashaSummary),
	}
}

func TestExtract_FullSummary(t *testing.T) {
	x := MustNewExtractor(DefaultCues())

	got := x.Extract(ashaTranscript())

	assert.Equal(t, "Asha Menon", got.Name)
	assert.Equal(t, "+91 98765 43210", got.Phone)
	assert.Equal(t, "12 MG Road, Kochi", got.Location)
	assert.Equal(t, "5 March 2024 at 14:30:00 UTC+5:30", got.IncidentDate)
	assert.Empty(t, got.Missing)
	assert.Equal(t, "A caller impersonating a bank officer obtained an OTP and debited Rs 40,000.", got.Report)

	require.Len(t, got.Transcript, 4)
	assert.Equal(t, 4, got.TurnCount)
	for i, e := range got.Transcript {
		assert.Equal(t, i+1, e.ID)
	}
	assert.Equal(t, model.RoleUser, got.Transcript[0].Role)
	assert.Equal(t, "I want to report a fraud", got.Transcript[0].Message)
	assert.Equal(t, model.RoleAssistant, got.Transcript[3].Role)
}

func TestExtract_EmptyTranscript(t *testing.T) {
	x := MustNewExtractor(DefaultCues())

	got := x.Extract(nil)

	assert.Empty(t, got.Name)
	assert.Empty(t, got.Phone)
	assert.Empty(t, got.Location)
	assert.Empty(t, got.IncidentDate)
	assert.NotNil(t, got.Transcript)
	assert.Empty(t, got.Transcript)
	assert.Zero(t, got.TurnCount)
	assert.Equal(t, []string{
		model.FieldName, model.FieldPhone, model.FieldLocation, model.FieldIncidentDate,
	}, got.Missing)
}

func TestExtract_MissingPhoneOnlyDegradesPhone(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := ashaTranscript()
	turns[3].Content = strings.Replace(ashaSummary, "your phone number is +91 98765 43210, ", "", 1)

	got := x.Extract(turns)

	assert.Equal(t, "Asha Menon", got.Name)
	assert.Empty(t, got.Phone)
	assert.Equal(t, "12 MG Road, Kochi", got.Location)
	assert.Equal(t, "5 March 2024 at 14:30:00 UTC+5:30", got.IncidentDate)
	assert.Equal(t, []string{model.FieldPhone}, got.Missing)
}

func TestExtract_MalformedPhoneIsEmpty(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := ashaTranscript()
	turns[3].Content = strings.Replace(ashaSummary, "+91 98765 43210", "9876543210", 1)

	got := x.Extract(turns)

	assert.Empty(t, got.Phone)
	assert.Equal(t, "Asha Menon", got.Name)
}

func TestExtract_OnlyLastTurnIsScanned(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := append(ashaTranscript(), model.UserTurn("thanks, that is all"))

	got := x.Extract(turns)

	assert.Empty(t, got.Name)
	assert.Empty(t, got.Phone)
	assert.Empty(t, got.Location)
	assert.Empty(t, got.IncidentDate)
	assert.Len(t, got.Missing, 4)
	assert.Equal(t, 5, got.TurnCount)
}

func TestExtract_Idempotent(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := ashaTranscript()

	first := x.Extract(turns)
	second := x.Extract(turns)

	assert.Equal(t, first, second)
}

func TestExtract_DateWithoutMinutesOffset(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := []model.Turn{model.AssistantTurn("It happened on 12 January 2025 at 09:05:00 UTC+1.")}

	got := x.Extract(turns)

	assert.Equal(t, "12 January 2025 at 09:05:00 UTC+1", got.IncidentDate)
}

func TestExtract_Tags(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	turns := []model.Turn{model.AssistantTurn(
		"[Report]:{first} [fraud type]: { upi } [report]:{second} [amount-lost]:{500}",
	)}

	got := x.Extract(turns)

	assert.Equal(t, "first", got.Report)
	assert.Equal(t, map[string]string{
		"report":      "first",
		"fraud_type":  "upi",
		"amount_lost": "500",
	}, got.Tags)
}

func TestExtract_TruncatesOversizedContent(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	big := strings.Repeat("x", maxContentLen) + " your name is Asha Menon"

	got := x.Extract([]model.Turn{model.AssistantTurn(big)})

	assert.Empty(t, got.Name)
	assert.Contains(t, got.Missing, model.FieldName)
}

func TestParseCues(t *testing.T) {
	data := []byte(`
cues:
  - field: name
    phrase: "I am"
    pattern: "[A-Za-z ]+"
    trim: " "
  - field: phone
    phrase: "call me on"
    pattern: "\\d{10}"
`)
	set, err := ParseCues(data)
	require.NoError(t, err)
	require.Len(t, set.Cues, 2)

	x, err := NewExtractor(set)
	require.NoError(t, err)

	got := x.Extract([]model.Turn{model.UserTurn("I am Ravi Kumar. call me on 9876543210")})
	assert.Equal(t, "Ravi Kumar", got.Name)
	assert.Equal(t, "9876543210", got.Phone)
	assert.Empty(t, got.Missing)
}

func TestParseCues_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "cues: []"},
		{name: "unknown field", data: "cues:\n  - field: email\n    phrase: mail is\n    pattern: .+"},
		{name: "empty phrase", data: "cues:\n  - field: name\n    phrase: ' '\n    pattern: .+"},
		{name: "empty pattern", data: "cues:\n  - field: name\n    phrase: name is"},
		{name: "bad regexp", data: "cues:\n  - field: name\n    phrase: name is\n    pattern: '([a-z'"},
		{name: "bad yaml", data: "cues: {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCues([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadCues_ShippedFileMatchesDefaults(t *testing.T) {
	set, err := LoadCues(filepath.Join("..", "..", "..", "..", "configs", "extraction_cues.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCues(), set)
}

func TestLoadCues_MissingFile(t *testing.T) {
	_, err := LoadCues(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestExtract_LocationKeepsPeriodsAndInnerAnd(t *testing.T) {
	x := MustNewExtractor(DefaultCues())
	cases := map[string]string{
		"No. 12 MG Road, Kochi":        "you live at No. 12 MG Road, Kochi, and the incident occurred on 5 March 2024 at 14:30:00 UTC+5:30.",
		"4 St. Mary Lane, Kochi":       "you live at 4 St. Mary Lane, Kochi, and the incident occurred on 5 March 2024 at 14:30:00 UTC+5:30.",
		"7 Sand and Stone Road, Kochi": "you live at 7 Sand and Stone Road, Kochi, and the incident occurred on 5 March 2024 at 14:30:00 UTC+5:30.",
		"12 MG Road, Kochi":            "your name is Asha Menon and you live at 12 MG Road, Kochi. [report]:{OTP fraud}",
	}
	for want, summary := range cases {
		got := x.Extract([]model.Turn{model.AssistantTurn(summary)})
		assert.Equal(t, want, got.Location, summary)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := "ab" + "é" + "cd" // é is two bytes
	assert.Equal(t, "ab", truncate(s, 3))
	assert.Equal(t, "abé", truncate(s, 4))
	assert.Equal(t, s, truncate(s, 100))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("é", maxContentLen), maxContentLen+1)))
}

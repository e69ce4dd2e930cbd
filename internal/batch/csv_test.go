package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-assistant/internal/domain"
)

func sampleItems(n int) []domain.AnswerItem {
	items := make([]domain.AnswerItem, n)
	for i := range items {
		items[i] = domain.AnswerItem{
			Question: fmt.Sprintf("question %d, with a comma", i),
			Answer:   fmt.Sprintf("answer %d\nwith a newline", i),
			Metadata: "team: infra|priority: high",
		}
	}
	return items
}

func TestCSVRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			items := sampleItems(n)
			data, err := EncodeCSV(items)
			require.NoError(t, err)

			parsed, err := ParseCSV(data)
			require.NoError(t, err)
			assert.Equal(t, items, parsed)
		})
	}
}

func TestParseCSVWithoutHeader(t *testing.T) {
	parsed, err := ParseCSV([]byte("how do I reset?,hold the button,\n"))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "how do I reset?", parsed[0].Question)
}

func TestParseCSVPadsShortRows(t *testing.T) {
	parsed, err := ParseCSV([]byte("question,answer,metadata\nonly a question\n"))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "only a question", parsed[0].Question)
	assert.Empty(t, parsed[0].Answer)
	assert.Empty(t, parsed[0].Metadata)
}

func TestXLSXRoundTripWithLanguage(t *testing.T) {
	items := sampleItems(3)
	data, err := EncodeXLSX(items, "es")
	require.NoError(t, err)

	parsed, language, err := ParseXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, "es", language)
	require.Len(t, parsed, 3)
	for i := range items {
		assert.Equal(t, items[i].Question, parsed[i].Question)
		assert.Equal(t, items[i].Answer, parsed[i].Answer)
		assert.Equal(t, items[i].Metadata, parsed[i].Metadata)
	}
}

func TestXLSXRoundTripWithoutLanguage(t *testing.T) {
	data, err := EncodeXLSX(sampleItems(1), "")
	require.NoError(t, err)

	_, language, err := ParseXLSX(data)
	require.NoError(t, err)
	assert.Empty(t, language)
}

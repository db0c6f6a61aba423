package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecheck-backend/models"
)

func TestKeywordClassifier_Flag(t *testing.T) {
	c := NewKeywordClassifier(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "no risk language",
			text: "Tenant must maintain the garden in reasonable condition.",
			want: nil,
		},
		{
			name: "penalty and forfeiture",
			text: "A PENALTY applies and the bond is forfeited on breach.",
			want: []string{"penalty", "forfeit"},
		},
		{
			name: "automatic increase phrase",
			text: "Rent is subject to an automatic increase each quarter.",
			want: []string{"automatic increase"},
		},
		{
			name: "whole words only",
			text: "The landlord will define the refinement schedule.",
			want: nil,
		},
		{
			name: "empty text",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := c.Flag(tt.text)
			var got []string
			for _, f := range flags {
				got = append(got, f.Keyword)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordClassifier_CustomVocabulary(t *testing.T) {
	c := NewKeywordClassifier([]Keyword{{Phrase: "bank guarantee", Weight: 3}})

	flags := c.Flag("A bank guarantee is required in addition to bond.")
	require.Len(t, flags, 1)
	assert.Equal(t, models.KeywordFlag{Keyword: "bank guarantee", Weight: 3}, flags[0])

	assert.Empty(t, c.Flag("Penalty of two weeks rent."))
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	c := NewKeywordClassifier(nil)
	text := "Landlord may enter at any time without notice; penalty applies."

	first := c.Flag(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Flag(text))
	}
}

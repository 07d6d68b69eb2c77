package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	data, err := json.Marshal(ToDocument(g))
	require.NoError(t, err)

	var d Document
	require.NoError(t, json.Unmarshal(data, &d))
	back, err := d.Graph()
	require.NoError(t, err)
	assert.True(t, Equivalent(g, back))
}

func TestDocumentRejectsDanglingEndpoint(t *testing.T) {
	d := Document{
		Info:     Info{ID: "id-m", Name: "m"},
		Elements: []*Element{{ID: "id-a", Type: "Goal"}},
		Relationships: []*Relationship{
			{ID: "id-r", Type: "InfluenceRelationship", SourceID: "id-a", TargetID: "id-missing"},
		},
	}
	_, err := d.Graph()
	assert.ErrorContains(t, err, "id-missing")

	d.Relationships = nil
	d.Elements = append(d.Elements, &Element{ID: "id-a", Type: "Goal"})
	_, err = d.Graph()
	assert.ErrorIs(t, err, ErrDuplicateID)
}

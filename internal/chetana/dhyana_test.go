package chetana

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddMessageBoostsNeighborOnError(t *testing.T) {
	d := NewDhyana(5, 0.1, 100)
	d.AddMessage("m1", false, false)
	before := d.messages["m1"]
	d.AddMessage("m2", true, false)

	require.Greater(t, d.messages["m1"], before*0.5)
	require.Contains(t, d.GetFocusWindow(), "m2")
}

func TestTrackConceptsEvictsLowestSalienceAtCap(t *testing.T) {
	d := NewDhyana(5, 0.1, 2)
	d.TrackConcepts("alpha alpha alpha")
	d.TrackConcepts("beta beta")
	d.TrackConcepts("gamma")

	require.LessOrEqual(t, len(d.concepts), 2)
	require.Contains(t, d.concepts, "alpha")
}

func TestTrackConceptsDropsStopWordsAndShortTokens(t *testing.T) {
	d := NewDhyana(5, 0.1, 100)
	d.TrackConcepts("the and to an in a is pipeline")

	require.Len(t, d.concepts, 1)
	require.Contains(t, d.concepts, "pipeline")
}

func TestOnToolUsedAdjustsAroundBaseline(t *testing.T) {
	d := NewDhyana(5, 0.1, 100)
	d.OnToolUsed("grep", true, 0.3)
	require.InDelta(t, 0.8, d.tools["grep"], 1e-9)

	d.OnToolUsed("grep", false, 0.3)
	require.InDelta(t, 0.5, d.tools["grep"], 1e-9)
}

func TestGetFocusWindowRespectsConfiguredSize(t *testing.T) {
	d := NewDhyana(2, 0.1, 100)
	d.AddMessage("m1", false, false)
	d.AddMessage("m2", false, false)
	d.AddMessage("m3", false, false)

	require.Len(t, d.GetFocusWindow(), 2)
}

func TestDhyanaSerializeDeserializeRoundTrips(t *testing.T) {
	d := NewDhyana(5, 0.1, 100)
	d.AddMessage("m1", false, false)
	d.TrackConcepts("pipeline consolidation")
	d.OnToolUsed("grep", true, 0.4)

	snap := d.Serialize()
	restored := DeserializeDhyana(5, 0.1, 100, snap)

	require.Equal(t, d.messages, restored.messages)
	require.Equal(t, d.messageOrder, restored.messageOrder)
	require.Equal(t, d.concepts, restored.concepts)
	require.Equal(t, d.tools, restored.tools)
}

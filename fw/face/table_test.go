package face

import (
	"testing"

	"github.com/named-data/yanfd/fw/defn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceTableAddGetRemove(t *testing.T) {
	table := NewTable()

	var added []defn.FaceId
	var removed []defn.FaceId
	table.OnAfterAdd(func(f Face) { added = append(added, f.FaceId()) })
	table.OnBeforeRemove(func(f Face) { removed = append(removed, f.FaceId()) })

	f1 := NewTestFace(defn.NonLocal, defn.PointToPoint)
	f2 := NewTestFace(defn.Local, defn.PointToPoint)
	id1 := table.Add(f1)
	id2 := table.Add(f2)

	assert.Equal(t, FirstFreeId, id1)
	assert.Equal(t, FirstFreeId+1, id2)
	assert.Equal(t, []defn.FaceId{id1, id2}, added)

	assert.Same(t, Face(f1), table.Get(id1))
	assert.Nil(t, table.Get(9999))
	assert.Equal(t, 2, table.Size())

	all := table.All()
	require.Equal(t, 2, len(all))
	assert.Equal(t, id1, all[0].FaceId())
	assert.Equal(t, id2, all[1].FaceId())

	table.Remove(id1)
	assert.Equal(t, []defn.FaceId{id1}, removed)
	assert.Nil(t, table.Get(id1))
	assert.Equal(t, defn.Closed, f1.State())

	// removing an unknown id is a no-op
	table.Remove(id1)
	assert.Equal(t, 1, len(removed))
}

func TestFaceTableAddReserved(t *testing.T) {
	table := NewTable()

	internal := NewTestFace(defn.Local, defn.PointToPoint)
	require.NoError(t, table.AddReserved(internal, 1))
	assert.Same(t, Face(internal), table.Get(1))

	clash := NewTestFace(defn.Local, defn.PointToPoint)
	assert.Error(t, table.AddReserved(clash, 1))
}

func TestTestFaceRejectsSendWhenDown(t *testing.T) {
	f := NewTestFace(defn.NonLocal, defn.PointToPoint)
	f.Close()

	err := f.SendInterest(&defn.FwInterest{}, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, len(f.OutInterests))
}

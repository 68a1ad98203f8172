package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/sample"
)

func TestRegistry_PutGet(t *testing.T) {
	r := New()
	ds := sample.Generate(10, 1)

	id := r.Put(ds)
	require.NotEmpty(t, id)
	assert.Equal(t, id, ds.ID)

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistry_DeleteCascadesToViews(t *testing.T) {
	r := New()
	ds := sample.Generate(10, 1)
	id := r.Put(ds)

	view := ds.Select([]int{0, 1})
	viewID := r.PutView(view, id)

	other := sample.Generate(5, 2)
	otherID := r.Put(other)

	require.NoError(t, r.Delete(id))

	_, err := r.Get(viewID)
	assert.True(t, errors.IsNotFound(err), "views die with their source")
	_, err = r.Get(otherID)
	assert.NoError(t, err)

	err = r.Delete(id)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistry_List(t *testing.T) {
	r := New()
	assert.Empty(t, r.List())

	a := sample.Generate(3, 1)
	b := sample.Generate(5, 2)
	r.Put(a)
	idB := r.Put(b)

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, 2, r.Len())

	var foundB bool
	for _, info := range infos {
		if info.ID == idB {
			foundB = true
			assert.Equal(t, 5, info.Rows)
			assert.Equal(t, b.NumCols(), info.Columns)
		}
	}
	assert.True(t, foundB)
}

func TestRegistry_ViewParentRecorded(t *testing.T) {
	r := New()
	ds := sample.Generate(4, 3)
	id := r.Put(ds)
	viewID := r.PutView(ds.Select([]int{0}), id)

	var viewInfo *Info
	for _, info := range r.List() {
		if info.ID == viewID {
			v := info
			viewInfo = &v
		}
	}
	require.NotNil(t, viewInfo)
	assert.Equal(t, id, viewInfo.ParentID)
}

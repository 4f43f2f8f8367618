package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIndex_CreateAddsCreator(t *testing.T) {
	x := newRoomIndex(nil, 0)
	r, err := x.create(testQuiz(), "alice", time.Unix(0, 0))
	require.NoError(t, err)

	assert.True(t, r.has("alice"))
	assert.Len(t, r.code, DefaultCodeLength)
	assert.Equal(t, 1, x.len())

	byCode, ok := x.byCode(r.code)
	require.True(t, ok)
	assert.Equal(t, r.id, byCode.id)
}

func TestRoomIndex_LeavePrunesAndFreesCode(t *testing.T) {
	x := newRoomIndex(nil, 6)
	r, err := x.create(testQuiz(), "alice", time.Unix(0, 0))
	require.NoError(t, err)
	_, err = x.join("bob", r.id)
	require.NoError(t, err)

	removed, pruned := x.leave("alice", r.id)
	assert.True(t, removed)
	assert.False(t, pruned)

	removed, pruned = x.leave("alice", r.id)
	assert.False(t, removed)
	assert.False(t, pruned)

	removed, pruned = x.leave("bob", r.id)
	assert.True(t, removed)
	assert.True(t, pruned)
	assert.Zero(t, x.len())
	_, ok := x.byCode(r.code)
	assert.False(t, ok)
}

func TestRoomIndex_LeaveAllReturnsSurvivors(t *testing.T) {
	x := newRoomIndex(nil, 0)
	solo, err := x.create(testQuiz(), "alice", time.Unix(1, 0))
	require.NoError(t, err)
	shared, err := x.create(testQuiz(), "alice", time.Unix(2, 0))
	require.NoError(t, err)
	_, err = x.join("bob", shared.id)
	require.NoError(t, err)

	affected := x.leaveAll("alice")
	require.Len(t, affected, 1)
	assert.Equal(t, shared.id, affected[0].id)

	_, ok := x.get(solo.id)
	assert.False(t, ok)
	assert.Empty(t, x.leaveAll("nobody"))
}

func TestRoomIndex_InfosOrderedByCreation(t *testing.T) {
	x := newRoomIndex(nil, 0)
	later, err := x.create(testQuiz(), "alice", time.Unix(20, 0))
	require.NoError(t, err)
	earlier, err := x.create(testQuiz(), "bob", time.Unix(10, 0))
	require.NoError(t, err)

	infos := x.infos()
	require.Len(t, infos, 2)
	assert.Equal(t, earlier.id, infos[0].ID)
	assert.Equal(t, later.id, infos[1].ID)
	assert.Equal(t, "Capitals", infos[0].QuizName)
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := newRegistry()
	assert.False(t, r.register("alice", &recorder{}))
	assert.True(t, r.register("alice", &recorder{}))
	assert.False(t, r.register("bob", &recorder{}))
	assert.Equal(t, []SessionID{"alice", "bob"}, r.sessions())

	assert.True(t, r.unregister("alice"))
	assert.False(t, r.unregister("alice"))
	_, ok := r.lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, r.len())
}

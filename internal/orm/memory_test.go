package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMemoryPort_CreateAndFindFirst(t *testing.T) {
	port := NewMemoryPort()
	ctx := context.Background()

	created, err := port.Create(ctx, "subject", Row{"email": "a@example.com", "status": "active"})
	require.NoError(t, err, "create should succeed")
	assert.NotEmpty(t, created["id"], "memory port should assign an id when absent")

	found, err := port.FindFirst(ctx, "subject", FindFirstOptions{
		Where: func(b Builder) Predicate { return b.Col("email").Eq("a@example.com") },
	})
	require.NoError(t, err)
	require.NotNil(t, found, "should find the row just created")
	assert.Equal(t, "active", found["status"])
}

func TestMemoryPort_FindFirst_NoMatchReturnsNilNotError(t *testing.T) {
	port := NewMemoryPort()
	ctx := context.Background()

	found, err := port.FindFirst(ctx, "subject", FindFirstOptions{
		Where: func(b Builder) Predicate { return b.Col("email").Eq("missing@example.com") },
	})
	assert.NoError(t, err)
	assert.Nil(t, found, "absence is not an error")
}

func TestMemoryPort_UpdateManyAndDeleteMany(t *testing.T) {
	port := NewMemoryPort()
	ctx := context.Background()

	_, _ = port.Create(ctx, "session", Row{"id": "s1", "status": "active", "subject_id": "u1"})
	_, _ = port.Create(ctx, "session", Row{"id": "s2", "status": "active", "subject_id": "u1"})
	_, _ = port.Create(ctx, "session", Row{"id": "s3", "status": "active", "subject_id": "u2"})

	updated, err := port.UpdateMany(ctx, "session", UpdateManyOptions{
		Where: func(b Builder) Predicate { return b.Col("subject_id").Eq("u1") },
		Set:   Row{"status": "revoked"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	count, err := port.Count(ctx, "session", CountOptions{
		Where: func(b Builder) Predicate { return b.Col("status").Eq("revoked") },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	deleted, err := port.DeleteMany(ctx, "session", DeleteManyOptions{
		Where: func(b Builder) Predicate { return b.Col("status").Eq("revoked") },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := port.Count(ctx, "session", CountOptions{Where: nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining, "only u2's session should remain")
}

func TestMemoryPort_Upsert(t *testing.T) {
	port := NewMemoryPort()
	ctx := context.Background()

	where := func(b Builder) Predicate { return b.Col("key").Eq("rotation-lock") }

	row, err := port.Upsert(ctx, "jwks_key_rotation", UpsertOptions{
		Where:  where,
		Create: Row{"key": "rotation-lock", "state": "idle"},
		Update: Row{"state": "running"},
	})
	require.NoError(t, err)
	assert.Equal(t, "idle", row["state"], "first upsert should create")

	row, err = port.Upsert(ctx, "jwks_key_rotation", UpsertOptions{
		Where:  where,
		Create: Row{"key": "rotation-lock", "state": "idle"},
		Update: Row{"state": "running"},
	})
	require.NoError(t, err)
	assert.Equal(t, "running", row["state"], "second upsert should update the existing row")

	count, err := port.Count(ctx, "jwks_key_rotation", CountOptions{Where: nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "upsert must never duplicate the row")
}

func TestEvalPredicate_AndOrIsNull(t *testing.T) {
	row := Row{"status": "active", "revoked_at": nil, "uses": 3}

	and := Predicate{Kind: KindAnd, Children: []Predicate{
		{Kind: KindLeaf, Column: "status", Op: OpEq, Value: "active"},
		{Kind: KindLeaf, Column: "uses", Op: OpGte, Value: 3},
	}}
	assert.True(t, evalPredicate(and, row))

	isNull := Predicate{Kind: KindIsNull, Column: "revoked_at"}
	assert.True(t, evalPredicate(isNull, row))

	or := Predicate{Kind: KindOr, Children: []Predicate{
		{Kind: KindLeaf, Column: "status", Op: OpEq, Value: "expired"},
		{Kind: KindLeaf, Column: "status", Op: OpEq, Value: "active"},
	}}
	assert.True(t, evalPredicate(or, row))
}

func TestCompileSQL_LeafAndIn(t *testing.T) {
	clause, args, next := CompileSQL(Predicate{Kind: KindLeaf, Column: "status", Op: OpEq, Value: "active"}, 1)
	assert.Equal(t, `"status" = $1`, clause)
	assert.Equal(t, []any{"active"}, args)
	assert.Equal(t, 2, next)

	clause, args, _ = CompileSQL(Predicate{Kind: KindLeaf, Column: "id", Op: OpIn, Value: []any{"a", "b"}}, 1)
	assert.Equal(t, `"id" IN ($1, $2)`, clause)
	assert.Equal(t, []any{"a", "b"}, args)
}

func TestCompileMongo_LeafAndCombinators(t *testing.T) {
	filter := CompileMongo(Predicate{Kind: KindLeaf, Column: "status", Op: OpEq, Value: "active"})
	assert.Equal(t, "active", filter["status"].(bson.M)["$eq"])

	filter = CompileMongo(Predicate{Kind: KindIsNull, Column: "revoked_at"})
	assert.Equal(t, false, filter["revoked_at"].(bson.M)["$exists"])
}

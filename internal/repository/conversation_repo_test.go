package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpilot-ai/docpilot/internal/domain"
)

func newTestRepo(t *testing.T) *ConversationRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationRepository(db)
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	conv, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestAppendAndHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, id, &domain.Message{Role: domain.RoleUser, Content: "What is X?"}))
	require.NoError(t, repo.Append(ctx, id, &domain.Message{
		Role:    domain.RoleAssistant,
		Content: "X is ...",
		Sources: []domain.Source{{ChunkID: "c1", Filename: "x.txt", Score: 0.9}},
	}))

	history, err := repo.History(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	assert.Empty(t, history[0].Sources)
	require.Len(t, history[1].Sources, 1)
	assert.Equal(t, "x.txt", history[1].Sources[0].Filename)
}

func TestAppendToMissingConversation(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Append(context.Background(), "missing", &domain.Message{Role: domain.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestHistoryLimitKeepsMostRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx)
	require.NoError(t, err)

	contents := []string{"q1", "a1", "q2", "a2", "q3", "a3"}
	for i, content := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, repo.Append(ctx, id, &domain.Message{Role: role, Content: content}))
	}

	history, err := repo.History(ctx, id, 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "a3", history[3].Content)
}

func TestListOrderedByUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx)
	require.NoError(t, err)
	second, err := repo.Create(ctx)
	require.NoError(t, err)

	// Touch the first conversation so it becomes the most recent.
	require.NoError(t, repo.Append(ctx, first, &domain.Message{Role: domain.RoleUser, Content: "hi"}))

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].MessageCount)
	assert.Equal(t, second, summaries[1].ID)
	assert.Equal(t, 0, summaries[1].MessageCount)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, id, &domain.Message{Role: domain.RoleUser, Content: "hi"}))

	require.NoError(t, repo.Delete(ctx, id))

	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrConversationNotFound)
}

func TestReset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := repo.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, id, &domain.Message{Role: domain.RoleUser, Content: "hi"}))
	}

	count, err := repo.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestConcurrentWritersDoNotContend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Parallel creates followed by parallel appends across distinct
	// conversations hit sqlite with overlapping write transactions;
	// they must all succeed rather than fail busy.
	const writers = 8
	ids := make([]string, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.Create(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = id
			errs[i] = repo.Append(ctx, id, &domain.Message{
				Role:    domain.RoleUser,
				Content: fmt.Sprintf("message %d", i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, writers)
	for _, id := range ids {
		history, err := repo.History(ctx, id, 0)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	}
}

func TestHistoryCorruptSourcesRow(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewConversationRepository(db)
	ctx := context.Background()

	id, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, id, &domain.Message{Role: domain.RoleAssistant, Content: "a"}))

	_, err = db.ExecContext(ctx, `UPDATE messages SET sources = 'not json' WHERE conversation_id = ?`, id)
	require.NoError(t, err)

	_, err = repo.History(ctx, id, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources")
}

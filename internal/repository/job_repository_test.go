package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

func TestJobRepositorySaveAssignsID(t *testing.T) {
	repo := NewInMemoryJobRepository()
	j := kernel.NewJob(123, []string{"a"})
	saved, err := repo.Save(j)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestJobRepositoryFindByIDNotFound(t *testing.T) {
	repo := NewInMemoryJobRepository()
	_, err := repo.FindByID(999)
	require.Error(t, err)
	var nfe *kernel.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestJobRepositoryFindByUserID(t *testing.T) {
	repo := NewInMemoryJobRepository()
	_, _ = repo.Save(kernel.NewJob(1, nil))
	_, _ = repo.Save(kernel.NewJob(2, nil))
	_, _ = repo.Save(kernel.NewJob(1, nil))

	jobs, err := repo.FindByUserID(1)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestJobRepositorySaveIsolatesCallerMutations(t *testing.T) {
	repo := NewInMemoryJobRepository()
	j := kernel.NewJob(1, []string{"original"})
	saved, _ := repo.Save(j)
	saved.Tags[0] = "mutated"

	reloaded, err := repo.FindByID(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", reloaded.Tags[0])
}

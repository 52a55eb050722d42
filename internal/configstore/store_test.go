package configstore

import (
	"testing"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T, name string) appmodel.Configuration {
	return appmodel.Configuration{
		Name: name,
		Applications: []appmodel.ApplicationSpec{
			{ID: "api", Name: "api", HandlerTag: "python", WorkDir: t.TempDir(), Command: "python app.py"},
		},
	}
}

func TestCreateAssignsSlugID(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id, err := s.Create(validConfig(t, "My Site"))
	require.NoError(t, err)
	require.Equal(t, "my-site", id)
}

func TestCreateDeduplicatesSlug(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id1, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)
	id2, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	require.Equal(t, "site-1", id2)
}

func TestCreateRejectsInvalidConfiguration(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Create(appmodel.Configuration{})
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestGetRoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Len(t, got.Applications, 1)
}

func TestGetNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get("nope")
	require.True(t, apperror.IsNotFound(err))
}

func TestListReturnsAllCreated(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Create(validConfig(t, "one"))
	require.NoError(t, err)
	_, err = s.Create(validConfig(t, "two"))
	require.NoError(t, err)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateRejectsWhenNotAllStopped(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	_, err = s.Update(id, false, func(cfg *appmodel.Configuration) error { return nil })
	require.True(t, apperror.IsBusy(err))
}

func TestUpdateAppliesFnAndPersists(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	updated, err := s.Update(id, true, func(cfg *appmodel.Configuration) error {
		cfg.Description = "updated"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "updated", updated.Description)

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, "updated", got.Description)
}

func TestUpdateRejectsInvalidResult(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	_, err = s.Update(id, true, func(cfg *appmodel.Configuration) error {
		cfg.Name = ""
		return nil
	})
	require.True(t, apperror.IsConfigInvalid(err))
}

func TestDeleteRejectsWhenNotAllStopped(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	err = s.Delete(id, false)
	require.True(t, apperror.IsBusy(err))
}

func TestDeleteRemovesConfiguration(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	id, err := s.Create(validConfig(t, "site"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(id, true))
	_, err = s.Get(id)
	require.True(t, apperror.IsNotFound(err))
}

func TestDeleteNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	err = s.Delete("nope", true)
	require.True(t, apperror.IsNotFound(err))
}

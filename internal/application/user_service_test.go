package application_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/internal/domain/entity"
	"github.com/yhensel/burgers-api/pkg/helpers"
)

var hasher = helpers.NewBcryptHasher(bcrypt.MinCost)

func strp(s string) *string { return &s }

func newTestService(t *testing.T) (*application.Service, *memRepo) {
	t.Helper()
	r := newMemRepo()
	return application.NewService(r, hasher, nil, nil, nil, nil), r
}

func createAnn(t *testing.T, svc *application.Service) *entity.User {
	t.Helper()
	u, err := svc.Create(context.Background(), application.CreateUserInput{
		Name: "Ann", Email: "ann@x.com", Password: "secret", ConfirmPassword: "secret",
	})
	require.NoError(t, err)
	return u
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var ve *application.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Fields
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("AssignsIDAndHashesPassword", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		assert.Equal(t, "1", u.ID)
		assert.Equal(t, "ann@x.com", u.Email)
		assert.Equal(t, "Ann", u.Name)

		stored, ok := r.stored(u.ID)
		require.True(t, ok)
		assert.NotEqual(t, "secret", stored.Password)
		assert.True(t, hasher.Verify("secret", stored.Password))
		assert.False(t, stored.CreatedAt.IsZero())
	})

	t.Run("RoundTripThroughShow", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		got, err := svc.Show(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Ann", got.Name)
		assert.Equal(t, "ann@x.com", got.Email)
	})

	t.Run("RequiredFields", func(t *testing.T) {
		svc, r := newTestService(t)
		_, err := svc.Create(ctx, application.CreateUserInput{})
		fields := fieldErrors(t, err)
		for _, f := range []string{"name", "email", "password", "confirm_password"} {
			assert.Equal(t, []string{"is required"}, fields[f], f)
		}
		assert.Empty(t, r.users)
	})

	t.Run("NameBoundary", func(t *testing.T) {
		svc, r := newTestService(t)
		in := application.CreateUserInput{Name: strings.Repeat("n", 125), Email: "a@x.com", Password: "p", ConfirmPassword: "p"}
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)

		in.Name = strings.Repeat("n", 126)
		in.Email = "b@x.com"
		_, err = svc.Create(ctx, in)
		fields := fieldErrors(t, err)
		assert.Equal(t, []string{"must be at most 125 characters long"}, fields["name"])
		assert.Len(t, r.users, 1)
	})

	t.Run("MalformedEmail", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Create(ctx, application.CreateUserInput{Name: "Ann", Email: "ann", Password: "p", ConfirmPassword: "p"})
		assert.Equal(t, []string{"must be a valid email"}, fieldErrors(t, err)["email"])
	})

	t.Run("ConfirmationMismatch", func(t *testing.T) {
		svc, r := newTestService(t)
		_, err := svc.Create(ctx, application.CreateUserInput{Name: "Ann", Email: "ann@x.com", Password: "secret", ConfirmPassword: "Secret"})
		assert.Equal(t, []string{"must be equal to password"}, fieldErrors(t, err)["confirm_password"])
		assert.Empty(t, r.users)
	})

	t.Run("StoreFailureIsGeneric", func(t *testing.T) {
		svc, r := newTestService(t)
		r.createErr = errors.New(`duplicate key value violates unique constraint "users_email_key"`)

		_, err := svc.Create(ctx, application.CreateUserInput{Name: "Ann", Email: "ann@x.com", Password: "p", ConfirmPassword: "p"})
		var pe *application.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "can't create the user", pe.Error())
		assert.NotContains(t, err.Error(), "duplicate")
		assert.Empty(t, r.users)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("WrongPasswordChangesNothing", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{
			Password:        "wrong",
			Name:            strp("Mallory"),
			Email:           strp("mallory@x.com"),
			NewPassword:     strp("pwned"),
			ConfirmPassword: strp("pwned"),
		})
		require.ErrorIs(t, err, application.ErrWrongPassword)
		assert.NotErrorIs(t, err, application.ErrInvalidCredentials)

		after, _ := r.stored(u.ID)
		assert.Equal(t, before, after)
	})

	t.Run("ChangesPassword", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{
			Password: "secret", NewPassword: strp("abc123"), ConfirmPassword: strp("abc123"),
		})
		require.NoError(t, err)

		stored, _ := r.stored(u.ID)
		assert.True(t, hasher.Verify("abc123", stored.Password))
		assert.False(t, hasher.Verify("secret", stored.Password))
	})

	t.Run("SameValuesAreIdempotent", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{
			Password: "secret", Name: strp("Ann"), Email: strp("ann@x.com"),
		})
		require.NoError(t, err)

		after, _ := r.stored(u.ID)
		assert.Equal(t, before.Name, after.Name)
		assert.Equal(t, before.Email, after.Email)
		assert.Equal(t, before.Password, after.Password)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
		assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	})

	t.Run("EmailOwnedByAnotherUserIsSilentlySkipped", func(t *testing.T) {
		svc, r := newTestService(t)
		ann := createAnn(t, svc)
		_, err := svc.Create(ctx, application.CreateUserInput{Name: "Bob", Email: "bob@x.com", Password: "p", ConfirmPassword: "p"})
		require.NoError(t, err)

		got, err := svc.Update(ctx, ann.ID, application.UpdateUserInput{
			Password: "secret", Email: strp("bob@x.com"), Name: strp("Annie"),
		})
		require.NoError(t, err)
		assert.Equal(t, "ann@x.com", got.Email)
		assert.Equal(t, "Annie", got.Name)

		stored, _ := r.stored(ann.ID)
		assert.Equal(t, "ann@x.com", stored.Email)
		assert.Equal(t, "Annie", stored.Name)
	})

	t.Run("FreeEmailIsApplied", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Email: strp(" ann@y.com ")})
		require.NoError(t, err)
		stored, _ := r.stored(u.ID)
		assert.Equal(t, "ann@y.com", stored.Email)
	})

	t.Run("AbsentFieldsKeepCurrentValues", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp("  "), NewPassword: strp("")})
		require.NoError(t, err)
		after, _ := r.stored(u.ID)
		assert.Equal(t, "Ann", after.Name)
		assert.Equal(t, before.Password, after.Password)
	})

	t.Run("PasswordAlwaysRequired", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Name: strp("Annie")})
		assert.Equal(t, []string{"is required"}, fieldErrors(t, err)["password"])
	})

	t.Run("ConfirmationRequiredWithNewPassword", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", NewPassword: strp("abc123")})
		assert.Equal(t, []string{"is required when new_password is present"}, fieldErrors(t, err)["confirm_password"])

		after, _ := r.stored(u.ID)
		assert.Equal(t, before.Password, after.Password)
	})

	t.Run("ConfirmationComparedWithNewPassword", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		// confirm_password equal to the current password is not enough
		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{
			Password: "secret", NewPassword: strp("abc123"), ConfirmPassword: strp("secret"),
		})
		assert.Equal(t, []string{"must be equal to new_password"}, fieldErrors(t, err)["confirm_password"])
	})

	t.Run("ConfirmationWithoutNewPasswordIsIgnored", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", ConfirmPassword: strp("whatever")})
		assert.NoError(t, err)
	})

	t.Run("NameTooLong", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp(strings.Repeat("n", 126))})
		assert.Contains(t, fieldErrors(t, err), "name")

		_, err = svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp(strings.Repeat("n", 125))})
		assert.NoError(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Update(ctx, "42", application.UpdateUserInput{Password: "secret"})
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("StoreFailureRollsBack", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)
		r.updateErr = errors.New("connection reset")

		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp("Annie")})
		var pe *application.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "can't update the user", pe.Error())

		after, _ := r.stored(u.ID)
		assert.Equal(t, before, after)
	})

	t.Run("CanceledContextRollsBack", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		before, _ := r.stored(u.ID)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.Update(cctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp("Annie")})
		var pe *application.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.ErrorIs(t, err, context.Canceled)

		after, _ := r.stored(u.ID)
		assert.Equal(t, before, after)
	})

	t.Run("ConcurrentUpdatesOnSameUserAreSerialized", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp(fmt.Sprintf("Ann %d", i))})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		stored, _ := r.stored(u.ID)
		assert.True(t, strings.HasPrefix(stored.Name, "Ann "))
		assert.True(t, hasher.Verify("secret", stored.Password))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("DeletesWithCorrectPassword", func(t *testing.T) {
		svc, _ := newTestService(t)
		u := createAnn(t, svc)

		got, err := svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "ann@x.com", got.Email)

		_, err = svc.Show(ctx, u.ID)
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("WrongPasswordKeepsUser", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "wrong"})
		require.ErrorIs(t, err, application.ErrInvalidCredentials)
		assert.NotErrorIs(t, err, application.ErrWrongPassword)

		_, ok := r.stored(u.ID)
		assert.True(t, ok)
	})

	t.Run("PasswordRequired", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)

		_, err := svc.Delete(ctx, u.ID, application.DeleteUserInput{})
		assert.Equal(t, []string{"is required"}, fieldErrors(t, err)["password"])
		_, ok := r.stored(u.ID)
		assert.True(t, ok)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Delete(ctx, "7", application.DeleteUserInput{Password: "secret"})
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("StoreFailureKeepsUser", func(t *testing.T) {
		svc, r := newTestService(t)
		u := createAnn(t, svc)
		r.deleteErr = errors.New("lock timeout")

		_, err := svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "secret"})
		var pe *application.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "can't delete the user", err.Error())
		_, ok := r.stored(u.ID)
		assert.True(t, ok)
	})
}

func TestListAndShow(t *testing.T) {
	ctx := context.Background()
	svc, r := newTestService(t)
	for i := 1; i <= 12; i++ {
		_, err := svc.Create(ctx, application.CreateUserInput{
			Name: fmt.Sprintf("User %02d", i), Email: fmt.Sprintf("user%02d@example.com", i), Password: "p", ConfirmPassword: "p",
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, application.CreateUserInput{Name: "Yhensel Benitez", Email: "yhensel@example.com", Password: "p", ConfirmPassword: "p"})
	require.NoError(t, err)

	t.Run("FixedPageSize", func(t *testing.T) {
		p, err := svc.List(ctx, application.ListInput{})
		require.NoError(t, err)
		assert.Len(t, p.Items, application.DefaultPageSize)
		assert.Equal(t, int64(13), p.Total)
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 2, p.LastPage())

		p, err = svc.List(ctx, application.ListInput{Page: 2})
		require.NoError(t, err)
		assert.Len(t, p.Items, 4)
	})

	t.Run("HugePageIsEmptyNotAnError", func(t *testing.T) {
		p, err := svc.List(ctx, application.ListInput{Page: math.MaxInt})
		require.NoError(t, err)
		assert.Empty(t, p.Items)
		assert.Equal(t, int64(13), p.Total)
		assert.Greater(t, p.Page, 1)
	})

	t.Run("PageBelowOneIsFirstPage", func(t *testing.T) {
		p, err := svc.List(ctx, application.ListInput{Page: -3})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Page)
	})

	t.Run("SearchMatchesNameOrEmailCaseInsensitive", func(t *testing.T) {
		p, err := svc.List(ctx, application.ListInput{Search: "BENITEZ"})
		require.NoError(t, err)
		require.Len(t, p.Items, 1)
		assert.Equal(t, "yhensel@example.com", p.Items[0].Email)

		p, err = svc.List(ctx, application.ListInput{Search: "user1"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.Total)
	})

	t.Run("ShowMissing", func(t *testing.T) {
		_, err := svc.Show(ctx, "999")
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		r.queryErr = errors.New("timeout")
		defer func() { r.queryErr = nil }()

		_, err := svc.List(ctx, application.ListInput{})
		var pe *application.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.True(t, pe.IsRead())

		_, err = svc.Show(ctx, "1")
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "can't load the user", pe.Error())
	})
}

func TestSideEffects(t *testing.T) {
	ctx := context.Background()

	t.Run("IndexAndEventsFollowLifecycle", func(t *testing.T) {
		r := newMemRepo()
		idx := new(mockIndex)
		ev := new(mockEvents)
		svc := application.NewService(r, hasher, nil, idx, ev, nil)

		idx.On("IndexUser", mock.Anything, mock.MatchedBy(func(u *entity.User) bool { return u.Email == "ann@x.com" })).Return(nil).Twice()
		idx.On("DeleteUser", mock.Anything, "1").Return(nil).Once()
		ev.On("PublishUserEvent", mock.Anything, mock.MatchedBy(func(e application.UserEvent) bool {
			return e.Type == application.EventUserCreated && e.UserID == "1" && e.ID != ""
		})).Return(nil).Once()
		ev.On("PublishUserEvent", mock.Anything, mock.MatchedBy(func(e application.UserEvent) bool {
			return e.Type == application.EventUserUpdated && assert.ObjectsAreEqual([]string{"name", "password"}, e.Changes)
		})).Return(nil).Once()
		ev.On("PublishUserEvent", mock.Anything, mock.MatchedBy(func(e application.UserEvent) bool {
			return e.Type == application.EventUserDeleted && e.Email == "ann@x.com"
		})).Return(nil).Once()

		u := createAnn(t, svc)
		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{
			Password: "secret", Name: strp("Annie"), NewPassword: strp("n3w"), ConfirmPassword: strp("n3w"),
		})
		require.NoError(t, err)
		_, err = svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "n3w"})
		require.NoError(t, err)

		idx.AssertExpectations(t)
		ev.AssertExpectations(t)
	})

	t.Run("RejectedMutationHasNoSideEffects", func(t *testing.T) {
		r := newMemRepo()
		idx := new(mockIndex)
		ev := new(mockEvents)
		svc := application.NewService(r, hasher, nil, idx, ev, nil)
		idx.On("IndexUser", mock.Anything, mock.Anything).Return(nil).Once()
		ev.On("PublishUserEvent", mock.Anything, mock.Anything).Return(nil).Once()

		u := createAnn(t, svc)
		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "nope", Name: strp("X")})
		require.ErrorIs(t, err, application.ErrWrongPassword)
		_, err = svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "nope"})
		require.ErrorIs(t, err, application.ErrInvalidCredentials)

		idx.AssertNumberOfCalls(t, "IndexUser", 1)
		idx.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
		ev.AssertNumberOfCalls(t, "PublishUserEvent", 1)
	})

	t.Run("PublishFailureDoesNotFailMutation", func(t *testing.T) {
		r := newMemRepo()
		ev := new(mockEvents)
		svc := application.NewService(r, hasher, nil, nil, ev, nil)
		ev.On("PublishUserEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		u := createAnn(t, svc)
		_, ok := r.stored(u.ID)
		assert.True(t, ok)
	})

	t.Run("CacheIsFilledAndInvalidated", func(t *testing.T) {
		r := newMemRepo()
		cache := newMapCache()
		svc := application.NewService(r, hasher, nil, nil, nil, cache)

		u := createAnn(t, svc)
		_, err := svc.Show(ctx, u.ID)
		require.NoError(t, err)
		cached, ok, _ := cache.Get(ctx, u.ID)
		require.True(t, ok)
		assert.Empty(t, cached.Password)

		_, err = svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp("Annie")})
		require.NoError(t, err)
		_, ok, _ = cache.Get(ctx, u.ID)
		assert.False(t, ok)

		got, err := svc.Show(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Annie", got.Name)

		_, err = svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "secret"})
		require.NoError(t, err)
		_, err = svc.Show(ctx, u.ID)
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("FillRacingDeleteIsDiscarded", func(t *testing.T) {
		r := newMemRepo()
		slow := newSlowFindRepo(r)
		svc := application.NewService(slow, hasher, nil, nil, nil, newMapCache())
		u := createAnn(t, application.NewService(r, hasher, nil, nil, nil, nil))

		done := make(chan error, 1)
		go func() {
			_, err := svc.Show(ctx, u.ID)
			done <- err
		}()
		<-slow.read
		_, err := svc.Delete(ctx, u.ID, application.DeleteUserInput{Password: "secret"})
		require.NoError(t, err)
		close(slow.release)
		require.NoError(t, <-done)

		_, err = svc.Show(ctx, u.ID)
		assert.ErrorIs(t, err, application.ErrUserNotFound)
	})

	t.Run("FillRacingUpdateIsDiscarded", func(t *testing.T) {
		r := newMemRepo()
		slow := newSlowFindRepo(r)
		svc := application.NewService(slow, hasher, nil, nil, nil, newMapCache())
		u := createAnn(t, application.NewService(r, hasher, nil, nil, nil, nil))

		done := make(chan error, 1)
		go func() {
			_, err := svc.Show(ctx, u.ID)
			done <- err
		}()
		<-slow.read
		_, err := svc.Update(ctx, u.ID, application.UpdateUserInput{Password: "secret", Name: strp("Annie")})
		require.NoError(t, err)
		close(slow.release)
		require.NoError(t, <-done)

		got, err := svc.Show(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Annie", got.Name)
	})
}

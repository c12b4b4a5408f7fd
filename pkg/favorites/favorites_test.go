package favorites

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/internal/fakebackend"
	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/notify"
	"github.com/campuseats/storefront/pkg/session"
)

var asha = session.NewAuthenticated("tok-asha", "U1")

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Favorites(ctx context.Context, sess session.Session, uniID string) ([]backend.Favorite, error) {
	args := m.Called(ctx, sess, uniID)
	favs, _ := args.Get(0).([]backend.Favorite)
	return favs, args.Error(1)
}

func (m *MockAPI) AddFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error {
	return m.Called(ctx, sess, itemID, vendorID).Error(0)
}

func (m *MockAPI) RemoveFavorite(ctx context.Context, sess session.Session, itemID, vendorID string) error {
	return m.Called(ctx, sess, itemID, vendorID).Error(0)
}

func newFakeService(t *testing.T) (*Service, *notify.Recorder) {
	t.Helper()
	tax, err := catalog.NewTaxonomy(config.DefaultRetailCategories, config.DefaultProduceCategories)
	require.NoError(t, err)

	store := fakebackend.NewStore(tax)
	fakebackend.Seed(store)
	srv := httptest.NewServer(fakebackend.NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)

	notes := &notify.Recorder{}
	return NewService(backend.New(srv.URL), WithNotifier(notes)), notes
}

func TestToggleAndList(t *testing.T) {
	svc, notes := newFakeService(t)
	ctx := context.Background()

	on, err := svc.Toggle(ctx, asha, "I1", "V1")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, Entry{Favorited: true, Status: Confirmed}, svc.State("I1", "V1"))
	last, _ := notes.Last()
	assert.Equal(t, "Added to favourites", last.Message)

	_, err = svc.Toggle(ctx, asha, "I1", "V2")
	require.NoError(t, err)
	assert.Equal(t, []string{"V1", "V2"}, svc.VendorsFor("I1"))

	favs, err := svc.List(ctx, asha, "")
	require.NoError(t, err)
	require.Len(t, favs, 2)
	require.NotNil(t, favs[0].Item)
	assert.Equal(t, "Masala Chips", favs[0].Item.Name)

	on, err = svc.Toggle(ctx, asha, "I1", "V1")
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, svc.IsFavorite("I1", "V1"))
	assert.Equal(t, []string{"V2"}, svc.VendorsFor("I1"))
	require.Len(t, svc.Items(), 1)
	assert.Equal(t, "V2", svc.Items()[0].VendorID)

	favs, err = svc.List(ctx, asha, "")
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestGuestNeedsLogin(t *testing.T) {
	api := new(MockAPI)
	notes := &notify.Recorder{}
	svc := NewService(api, WithNotifier(notes))
	ctx := context.Background()
	guest := session.NewGuest()

	_, err := svc.Toggle(ctx, guest, "I1", "V1")
	assert.True(t, errors.Is(err, errs.ErrAuthRequired))
	_, err = svc.List(ctx, guest, "")
	assert.True(t, errs.IsAuth(err))

	last, _ := notes.Last()
	assert.Equal(t, notify.MsgLoginRequired, last.Message)
	api.AssertExpectations(t)
}

func TestToggleRollsBackOnFailure(t *testing.T) {
	api := new(MockAPI)
	notes := &notify.Recorder{}
	svc := NewService(api, WithNotifier(notes))
	ctx := context.Background()

	api.On("Favorites", mock.Anything, asha, "").Return([]backend.Favorite{{UserID: "U1", ItemID: "I1", VendorID: "V1"}}, nil)
	api.On("RemoveFavorite", mock.Anything, asha, "I1", "V1").
		Return(errs.Rejected("backend.RemoveFavorite", http.StatusInternalServerError, "database unavailable"))
	api.On("AddFavorite", mock.Anything, asha, "I2", "V1").
		Return(errs.Network("backend.AddFavorite", errors.New("connection reset")))

	_, err := svc.List(ctx, asha, "")
	require.NoError(t, err)

	on, err := svc.Toggle(ctx, asha, "I1", "V1")
	require.Error(t, err)
	assert.True(t, on, "reports the restored state")
	assert.Equal(t, Entry{Favorited: true, Status: Confirmed}, svc.State("I1", "V1"))
	last, _ := notes.Last()
	assert.Equal(t, notify.Error, last.Level)
	assert.Equal(t, "database unavailable", last.Message)

	on, err = svc.Toggle(ctx, asha, "I2", "V1")
	require.Error(t, err)
	assert.False(t, on)
	assert.Equal(t, Entry{}, svc.State("I2", "V1"))
	assert.Empty(t, svc.VendorsFor("I2"))

	api.AssertExpectations(t)
}

func TestToggleIsPendingUntilConfirmed(t *testing.T) {
	api := new(MockAPI)
	svc := NewService(api, WithNotifier(&notify.Recorder{}))
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	api.On("AddFavorite", mock.Anything, asha, "I3", "V1").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Toggle(ctx, asha, "I3", "V1")
		done <- err
	}()
	<-entered

	assert.Equal(t, Entry{Favorited: true, Status: Pending}, svc.State("I3", "V1"))
	assert.True(t, svc.IsFavorite("I3", "V1"))

	_, err := svc.Toggle(ctx, asha, "I3", "V1")
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Entry{Favorited: true, Status: Confirmed}, svc.State("I3", "V1"))
	api.AssertNumberOfCalls(t, "AddFavorite", 1)
}

func TestListKeepsPendingToggle(t *testing.T) {
	api := new(MockAPI)
	svc := NewService(api, WithNotifier(&notify.Recorder{}))
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	api.On("AddFavorite", mock.Anything, asha, "I3", "V1").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil)
	api.On("Favorites", mock.Anything, asha, "").
		Return([]backend.Favorite{{UserID: "U1", ItemID: "I1", VendorID: "V2"}}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Toggle(ctx, asha, "I3", "V1")
		done <- err
	}()
	<-entered

	_, err := svc.List(ctx, asha, "")
	require.NoError(t, err)
	assert.Equal(t, Entry{Favorited: true, Status: Pending}, svc.State("I3", "V1"))
	assert.Equal(t, Entry{Favorited: true, Status: Confirmed}, svc.State("I1", "V2"))

	_, err = svc.Toggle(ctx, asha, "I3", "V1")
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Entry{Favorited: true, Status: Confirmed}, svc.State("I3", "V1"))
	assert.Equal(t, []string{"V1"}, svc.VendorsFor("I3"))
	api.AssertNumberOfCalls(t, "AddFavorite", 1)
}

func TestStateResetsOnUserChange(t *testing.T) {
	api := new(MockAPI)
	svc := NewService(api, WithNotifier(&notify.Recorder{}))
	ctx := context.Background()
	ravi := session.NewAuthenticated("tok-ravi", "U2")

	api.On("AddFavorite", mock.Anything, mock.Anything, "I1", "V1").Return(nil)

	_, err := svc.Toggle(ctx, asha, "I1", "V1")
	require.NoError(t, err)
	on, err := svc.Toggle(ctx, ravi, "I1", "V1")
	require.NoError(t, err)
	assert.True(t, on, "ravi's favorites start empty")
	api.AssertNumberOfCalls(t, "AddFavorite", 2)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "confirmed", Confirmed.String())
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/stub"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) GetSession(ctx context.Context) (*backend.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(*backend.Session)
	return sess, args.Error(1)
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	args := m.Called(ctx, email, password)
	sess, _ := args.Get(0).(*backend.Session)
	return sess, args.Error(1)
}

func (m *mockAuth) SignUp(ctx context.Context, in backend.SignUpInput) (*backend.SignUpResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*backend.SignUpResult)
	return res, args.Error(1)
}

func (m *mockAuth) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAuth) ResendConfirmation(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuth) OnAuthStateChange(fn func(backend.AuthChange)) backend.Subscription {
	m.Called(fn)
	return backend.SubscriptionFunc(func() {})
}

func newMockedDevice(t *testing.T) (*device, *mockAuth) {
	t.Helper()
	auth := new(mockAuth)
	auth.On("GetSession", mock.Anything).Return(nil, nil)
	auth.On("OnAuthStateChange", mock.Anything).Return()
	client := &authClient{Client: stub.NewProvider().ClientFor("d1"), auth: auth}
	return newDeviceWith(t, client, "d1"), auth
}

func TestAuthService_LoginErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"wrong password", backend.ErrInvalidCredentials, models.CodeUnauthorized},
		{"unconfirmed email", backend.ErrEmailNotConfirmed, models.CodeEmailNotConfirmed},
		{"network", errors.New("dial tcp 10.0.0.5:5432: connection refused"), models.CodeNetwork},
		{"database", errors.New(`relation "profiles" does not exist`), models.CodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, auth := newMockedDevice(t)
			auth.On("SignIn", mock.Anything, "otieno@jkuat.ac.ke", "Str0ngPass!").Return(nil, tt.err).Once()

			_, err := d.auth.Login(context.Background(), LoginInput{Email: " otieno@jkuat.ac.ke ", Password: "Str0ngPass!"})
			assertAppCode(t, err, tt.wantCode)
			assert.Nil(t, d.stores.User.Get())
			auth.AssertExpectations(t)
		})
	}
}

func TestAuthService_LoginWithoutProfileGoesToCampusPicker(t *testing.T) {
	d, auth := newMockedDevice(t)
	sess := &backend.Session{
		AccessToken: "token",
		User:        &backend.AuthUser{ID: "u-42", Email: "njeri@ku.ac.ke"},
	}
	auth.On("SignIn", mock.Anything, "njeri@ku.ac.ke", "Str0ngPass!").Return(sess, nil).Once()

	res, err := d.auth.Login(context.Background(), LoginInput{Email: "njeri@ku.ac.ke", Password: "Str0ngPass!"})
	require.NoError(t, err)
	assert.Equal(t, guard.CampusPickerPath, res.Redirect)
	require.NotNil(t, d.stores.User.Get())
	assert.Equal(t, "njeri", d.stores.User.Get().Name)
	assert.Nil(t, d.stores.Campus.Get())
}

func TestAuthService_LogoutClearsStoresWhenBackendFails(t *testing.T) {
	d, auth := newMockedDevice(t)
	sess := &backend.Session{User: &backend.AuthUser{ID: "u-7", Email: "kip@mku.ac.ke"}}
	auth.On("SignIn", mock.Anything, "kip@mku.ac.ke", "Str0ngPass!").Return(sess, nil).Once()
	auth.On("SignOut", mock.Anything).Return(errors.New("connection reset by peer")).Once()

	_, err := d.auth.Login(context.Background(), LoginInput{Email: "kip@mku.ac.ke", Password: "Str0ngPass!"})
	require.NoError(t, err)
	require.NotNil(t, d.stores.User.Get())

	err = d.auth.Logout(context.Background())
	assertAppCode(t, err, models.CodeNetwork)
	assert.Nil(t, d.stores.User.Get())
	assert.Nil(t, d.stores.Campus.Get())
	auth.AssertExpectations(t)
}

func TestAuthService_ResendConfirmationValidatesEmail(t *testing.T) {
	d, auth := newMockedDevice(t)
	auth.On("ResendConfirmation", mock.Anything, "wanjiru@uonbi.ac.ke").Return(nil).Once()

	err := d.auth.ResendConfirmation(context.Background(), "nope")
	assertAppCode(t, err, models.CodeValidation)
	require.NoError(t, d.auth.ResendConfirmation(context.Background(), " wanjiru@uonbi.ac.ke "))
	auth.AssertNumberOfCalls(t, "ResendConfirmation", 1)
}

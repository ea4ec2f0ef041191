package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-user-accounts/internal/hasher"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/repositories"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deps struct {
	reader *services.MockUserReader
	writer *services.MockUserWriter
	hasher *services.MockPasswordHasher
	jwt    *services.MockJWTGenerator
}

func newDeps(ctrl *gomock.Controller) deps {
	return deps{
		reader: services.NewMockUserReader(ctrl),
		writer: services.NewMockUserWriter(ctrl),
		hasher: services.NewMockPasswordHasher(ctrl),
		jwt:    services.NewMockJWTGenerator(ctrl),
	}
}

func (d deps) service() *services.AccountService {
	return services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, nil, nil)
}

func TestAccountService_Create(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(d deps)
		wantID    int64
		wantToken string
		wantErr   error
	}{
		{
			name: "successful creation",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
				d.writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", "hashed").Return(int64(1), nil)
				d.jwt.EXPECT().Generate(gomock.Any(), int64(1)).Return("token123", nil)
			},
			wantID:    1,
			wantToken: "token123",
		},
		{
			name: "username already present",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").
					Return(&models.UserDB{ID: 5, Username: "USERNAME"}, nil)
			},
			wantErr: services.ErrUserAlreadyExists,
		},
		{
			name: "unique index rejects concurrent create",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
				d.writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", "hashed").
					Return(int64(0), repositories.ErrDuplicateUsername)
			},
			wantErr: services.ErrUserAlreadyExists,
		},
		{
			name: "hash error",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("", errors.New("entropy"))
			},
			wantErr: errors.New("entropy"),
		},
		{
			name: "reader error",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
		{
			name: "writer error",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
				d.writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", "hashed").Return(int64(0), errors.New("save error"))
			},
			wantErr: errors.New("save error"),
		},
		{
			name: "token error",
			setup: func(d deps) {
				d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil)
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
				d.writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", "hashed").Return(int64(1), nil)
				d.jwt.EXPECT().Generate(gomock.Any(), int64(1)).Return("", errors.New("jwt error"))
			},
			wantErr: errors.New("jwt error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := newDeps(ctrl)
			tt.setup(d)

			id, token, err := d.service().Create(context.Background(), "NAME", "USERNAME", "PASSWORD")
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Zero(t, id)
				assert.Empty(t, token)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAccountService_Login(t *testing.T) {
	stored := &models.UserDB{ID: 2, Name: "NAME", Username: "USERNAME", Password: "stored-hash"}

	tests := []struct {
		name      string
		setup     func(d deps)
		wantID    int64
		wantToken string
		wantErr   error
	}{
		{
			name: "successful login",
			setup: func(d deps) {
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(stored, nil)
				d.hasher.EXPECT().Verify("PASSWORD", "stored-hash").Return(true)
				d.jwt.EXPECT().Generate(gomock.Any(), int64(2)).Return("token123", nil)
			},
			wantID:    2,
			wantToken: "token123",
		},
		{
			name: "unknown username",
			setup: func(d deps) {
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name: "wrong password",
			setup: func(d deps) {
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(stored, nil)
				d.hasher.EXPECT().Verify("PASSWORD", "stored-hash").Return(false)
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name: "reader error",
			setup: func(d deps) {
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
		{
			name: "token error",
			setup: func(d deps) {
				d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(stored, nil)
				d.hasher.EXPECT().Verify("PASSWORD", "stored-hash").Return(true)
				d.jwt.EXPECT().Generate(gomock.Any(), int64(2)).Return("", errors.New("jwt error"))
			},
			wantErr: errors.New("jwt error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := newDeps(ctrl)
			tt.setup(d)

			id, token, err := d.service().Login(context.Background(), "USERNAME", "PASSWORD")
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Zero(t, id)
				assert.Empty(t, token)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

// Login must succeed with a randomized hash scheme, which rules out
// re-hashing the supplied password and comparing strings.
func TestAccountService_LoginWithRandomizedHasher(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, err := hasher.New(hasher.SchemePBKDF2SHA256, hasher.WithPBKDF2Rounds(1000))
	require.NoError(t, err)

	reader := services.NewMockUserReader(ctrl)
	writer := services.NewMockUserWriter(ctrl)
	jwt := services.NewMockJWTGenerator(ctrl)
	svc := services.NewAccountService(reader, writer, h, jwt, nil, nil)

	var storedHash string
	reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
	writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, passwordHash string) (int64, error) {
			storedHash = passwordHash
			return 1, nil
		})
	jwt.EXPECT().Generate(gomock.Any(), int64(1)).Return("t1", nil).Times(2)

	_, _, err = svc.Create(context.Background(), "NAME", "USERNAME", "PASSWORD")
	require.NoError(t, err)

	rehashed, err := h.Hash("PASSWORD")
	require.NoError(t, err)
	assert.NotEqual(t, storedHash, rehashed)

	reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").
		Return(&models.UserDB{ID: 1, Username: "USERNAME", Password: storedHash}, nil).Times(2)

	id, token, err := svc.Login(context.Background(), "USERNAME", "PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "t1", token)

	_, _, err = svc.Login(context.Background(), "USERNAME", "WRONG")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAccountService_Update(t *testing.T) {
	existing := &models.UserDB{ID: 1, Name: "OLD", Username: "old", Password: "old-hash"}

	tests := []struct {
		name    string
		setup   func(d deps)
		wantErr error
	}{
		{
			name: "successful update stores a hash",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.hasher.EXPECT().Hash("PASSWORD").Return("new-hash", nil)
				d.writer.EXPECT().Update(gomock.Any(), int64(1), "NAME", "USERNAME", "new-hash").Return(nil)
			},
		},
		{
			name: "missing user",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(nil, nil)
			},
			wantErr: services.ErrUserNotFound,
		},
		{
			name: "row vanished before update",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.hasher.EXPECT().Hash("PASSWORD").Return("new-hash", nil)
				d.writer.EXPECT().Update(gomock.Any(), int64(1), "NAME", "USERNAME", "new-hash").Return(repositories.ErrNotFound)
			},
			wantErr: services.ErrUserNotFound,
		},
		{
			name: "username collision is a persistence error",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.hasher.EXPECT().Hash("PASSWORD").Return("new-hash", nil)
				d.writer.EXPECT().Update(gomock.Any(), int64(1), "NAME", "USERNAME", "new-hash").Return(repositories.ErrDuplicateUsername)
			},
			wantErr: repositories.ErrDuplicateUsername,
		},
		{
			name: "reader error",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(nil, errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
		{
			name: "hash error",
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.hasher.EXPECT().Hash("PASSWORD").Return("", errors.New("entropy"))
			},
			wantErr: errors.New("entropy"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := newDeps(ctrl)
			tt.setup(d)

			id, err := d.service().Update(context.Background(), 1, "NAME", "USERNAME", "PASSWORD")
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Zero(t, id)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, int64(1), id)
		})
	}
}

func TestAccountService_Delete(t *testing.T) {
	existing := &models.UserDB{ID: 1, Username: "USERNAME"}

	tests := []struct {
		name    string
		id      int64
		setup   func(d deps)
		wantErr error
	}{
		{
			name: "successful delete",
			id:   1,
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.writer.EXPECT().Delete(gomock.Any(), int64(1)).Return(nil)
			},
		},
		{
			name: "missing user",
			id:   500,
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(500)).Return(nil, nil)
			},
			wantErr: services.ErrUserNotFound,
		},
		{
			name: "writer error",
			id:   1,
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.writer.EXPECT().Delete(gomock.Any(), int64(1)).Return(errors.New("delete error"))
			},
			wantErr: errors.New("delete error"),
		},
		{
			name: "row vanished before delete",
			id:   1,
			setup: func(d deps) {
				d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(existing, nil)
				d.writer.EXPECT().Delete(gomock.Any(), int64(1)).Return(repositories.ErrNotFound)
			},
			wantErr: services.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := newDeps(ctrl)
			tt.setup(d)

			id, err := d.service().Delete(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Zero(t, id)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.id, id)
		})
	}
}

func makeUsers(n int) []models.UserDB {
	users := make([]models.UserDB, n)
	for i := range users {
		users[i] = models.UserDB{ID: int64(i + 1), Name: "NAME", Username: "USERNAME", Password: "hash"}
	}
	return users
}

func TestAccountService_Search(t *testing.T) {
	tests := []struct {
		name      string
		matches   int
		page      int
		wantIDs   []int64
		wantTotal int
		wantErr   error
	}{
		{name: "first page", matches: 25, page: 1, wantIDs: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, wantTotal: 25},
		{name: "middle page", matches: 25, page: 2, wantIDs: []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, wantTotal: 25},
		{name: "last partial page", matches: 25, page: 3, wantIDs: []int64{21, 22, 23, 24, 25}, wantTotal: 25},
		{name: "past the end", matches: 25, page: 4, wantIDs: []int64{}, wantTotal: 25},
		{name: "page below one is first page", matches: 3, page: 0, wantIDs: []int64{1, 2, 3}, wantTotal: 3},
		{name: "last full page", matches: 20, page: 2, wantIDs: []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, wantTotal: 20},
		{name: "one past the last full page", matches: 20, page: 3, wantIDs: []int64{}, wantTotal: 20},
		{name: "page that overflows the offset", matches: 3, page: 1<<62 + 1, wantIDs: []int64{}, wantTotal: 3},
		{name: "max int page", matches: 3, page: math.MaxInt, wantIDs: []int64{}, wantTotal: 3},
		{name: "no matches", matches: 0, page: 1, wantErr: services.ErrNoUsersFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := newDeps(ctrl)
			d.reader.EXPECT().SearchByUsername(gomock.Any(), "user").Return(makeUsers(tt.matches), nil)

			users, total, err := d.service().Search(context.Background(), "user", tt.page)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, users)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)

			ids := make([]int64, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
				assert.Equal(t, "USERNAME", u.Username)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.NotNil(t, users)
		})
	}
}

func TestAccountService_SearchReaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := newDeps(ctrl)
	d.reader.EXPECT().SearchByUsername(gomock.Any(), "x").Return(nil, errors.New("db error"))

	_, _, err := d.service().Search(context.Background(), "x", 1)
	assert.EqualError(t, err, "db error")
}

func TestAccountService_SearchCache(t *testing.T) {
	ctx := context.Background()
	views := []models.UserView{{ID: 1, Name: "NAME", Username: "USERNAME"}}

	t.Run("hit skips the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := newDeps(ctrl)
		cache := services.NewMockSearchCache(ctrl)
		svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, cache, nil)

		cache.EXPECT().Get(gomock.Any(), "user").Return(views, "users:search:0:user", true, nil)

		users, total, err := svc.Search(ctx, "user", 1)
		require.NoError(t, err)
		assert.Equal(t, views, users)
		assert.Equal(t, 1, total)
	})

	t.Run("miss fills the cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := newDeps(ctrl)
		cache := services.NewMockSearchCache(ctrl)
		svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, cache, nil)

		gomock.InOrder(
			cache.EXPECT().Get(gomock.Any(), "user").Return(nil, "users:search:3:user", false, nil),
			d.reader.EXPECT().SearchByUsername(gomock.Any(), "user").Return(makeUsers(1), nil),
			cache.EXPECT().Set(gomock.Any(), "users:search:3:user", views).Return(nil),
		)

		users, _, err := svc.Search(ctx, "user", 1)
		require.NoError(t, err)
		assert.Equal(t, views, users)
	})

	t.Run("cache failures fall through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := newDeps(ctrl)
		cache := services.NewMockSearchCache(ctrl)
		svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, cache, nil)

		cache.EXPECT().Get(gomock.Any(), "user").Return(nil, "users:search:0:user", false, errors.New("redis down"))
		d.reader.EXPECT().SearchByUsername(gomock.Any(), "user").Return(makeUsers(1), nil)
		cache.EXPECT().Set(gomock.Any(), "users:search:0:user", views).Return(errors.New("redis down"))

		users, total, err := svc.Search(ctx, "user", 1)
		require.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Equal(t, 1, total)
	})

	t.Run("unknown generation skips the fill", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := newDeps(ctrl)
		cache := services.NewMockSearchCache(ctrl)
		svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, cache, nil)

		cache.EXPECT().Get(gomock.Any(), "user").Return(nil, "", false, errors.New("redis down"))
		d.reader.EXPECT().SearchByUsername(gomock.Any(), "user").Return(makeUsers(1), nil)

		users, _, err := svc.Search(ctx, "user", 1)
		require.NoError(t, err)
		assert.Equal(t, views, users)
	})

	t.Run("writes invalidate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := newDeps(ctrl)
		cache := services.NewMockSearchCache(ctrl)
		svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, cache, nil)

		d.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&models.UserDB{ID: 1}, nil)
		d.writer.EXPECT().Delete(gomock.Any(), int64(1)).Return(nil)
		cache.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis down"))

		id, err := svc.Delete(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})
}

func TestAccountService_PublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := newDeps(ctrl)
	kw := services.NewMockKafkaWriter(ctrl)
	svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, nil, kw)

	var published []kafka.Message
	kw.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
			published = append(published, msgs...)
			return nil
		}).Times(2)

	d.hasher.EXPECT().Hash("PASSWORD").Return("hashed", nil).Times(2)
	d.reader.EXPECT().GetByUsername(gomock.Any(), "USERNAME").Return(nil, nil)
	d.writer.EXPECT().Save(gomock.Any(), "NAME", "USERNAME", "hashed").Return(int64(9), nil)
	d.jwt.EXPECT().Generate(gomock.Any(), int64(9)).Return("token", nil)

	_, _, err := svc.Create(context.Background(), "NAME", "USERNAME", "PASSWORD")
	require.NoError(t, err)

	d.reader.EXPECT().GetByID(gomock.Any(), int64(9)).Return(&models.UserDB{ID: 9}, nil)
	d.writer.EXPECT().Update(gomock.Any(), int64(9), "NAME", "RENAMED", "hashed").Return(nil)

	_, err = svc.Update(context.Background(), 9, "NAME", "RENAMED", "PASSWORD")
	require.NoError(t, err)

	require.Len(t, published, 2)
	wantEvents := []string{models.UserCreated, models.UserUpdated}
	wantNames := []string{"USERNAME", "RENAMED"}
	for i, msg := range published {
		assert.Equal(t, "9", string(msg.Key))

		var evt models.UserEvent
		require.NoError(t, json.Unmarshal(msg.Value, &evt))
		assert.Equal(t, wantEvents[i], evt.Event)
		assert.Equal(t, int64(9), evt.UserID)
		assert.Equal(t, wantNames[i], evt.Username)
		assert.Positive(t, evt.Timestamp)
	}
}

func TestAccountService_PublishFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := newDeps(ctrl)
	kw := services.NewMockKafkaWriter(ctrl)
	svc := services.NewAccountService(d.reader, d.writer, d.hasher, d.jwt, nil, kw)

	d.reader.EXPECT().GetByID(gomock.Any(), int64(3)).Return(&models.UserDB{ID: 3, Username: "gone"}, nil)
	d.writer.EXPECT().Delete(gomock.Any(), int64(3)).Return(nil)
	kw.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	id, err := svc.Delete(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

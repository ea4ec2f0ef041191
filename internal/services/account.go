package services

//go:generate mockgen -source=account.go -destination=mock_account.go -package=services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/repositories"
	"github.com/segmentio/kafka-go"
)

// Error variables
var (
	ErrUserAlreadyExists  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoUsersFound       = errors.New("no users match the search term")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*models.UserDB, error)
	GetByUsername(ctx context.Context, username string) (*models.UserDB, error)
	SearchByUsername(ctx context.Context, term string) ([]models.UserDB, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, name, username, passwordHash string) (int64, error)
	Update(ctx context.Context, id int64, name, username, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

// PasswordHasher hashes passwords and verifies them against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// JWTGenerator defines an interface for generating JWT tokens.
type JWTGenerator interface {
	Generate(ctx context.Context, userID int64) (string, error)
}

// SearchCache stores full search match sets by term. Get also returns the
// key the term maps to at read time; Set writes under that key.
type SearchCache interface {
	Get(ctx context.Context, term string) (users []models.UserView, key string, ok bool, err error)
	Set(ctx context.Context, key string, users []models.UserView) error
	Invalidate(ctx context.Context) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AccountService handles the user account lifecycle.
// cache and kafkaWriter are optional and may be nil.
type AccountService struct {
	reader      UserReader
	writer      UserWriter
	hasher      PasswordHasher
	jwt         JWTGenerator
	cache       SearchCache
	kafkaWriter KafkaWriter
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	reader UserReader,
	writer UserWriter,
	hasher PasswordHasher,
	jwt JWTGenerator,
	cache SearchCache,
	kafkaWriter KafkaWriter,
) *AccountService {
	return &AccountService{
		reader:      reader,
		writer:      writer,
		hasher:      hasher,
		jwt:         jwt,
		cache:       cache,
		kafkaWriter: kafkaWriter,
	}
}

// Create registers a new user and returns its id and a token.
func (svc *AccountService) Create(ctx context.Context, name, username, password string) (int64, string, error) {
	hashedPassword, err := svc.hasher.Hash(password)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return 0, "", err
	}

	existing, err := svc.reader.GetByUsername(ctx, username)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return 0, "", err
	}
	if existing != nil {
		logger.Log.Infow("user already exists", "username", username)
		return 0, "", ErrUserAlreadyExists
	}

	// The unique index decides when a concurrent create slipped past the check.
	id, err := svc.writer.Save(ctx, name, username, hashedPassword)
	if errors.Is(err, repositories.ErrDuplicateUsername) {
		logger.Log.Infow("user already exists", "username", username)
		return 0, "", ErrUserAlreadyExists
	}
	if err != nil {
		logger.Log.Errorw("failed to save user", "err", err)
		return 0, "", err
	}

	token, err := svc.jwt.Generate(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return 0, "", err
	}

	svc.afterWrite(ctx, models.UserCreated, id, username)

	return id, token, nil
}

// Login authenticates a user and returns its id and a token.
func (svc *AccountService) Login(ctx context.Context, username, password string) (int64, string, error) {
	user, err := svc.reader.GetByUsername(ctx, username)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return 0, "", err
	}
	if user == nil {
		logger.Log.Infow("user does not exist", "username", username)
		return 0, "", ErrInvalidCredentials
	}

	if !svc.hasher.Verify(password, user.Password) {
		logger.Log.Infow("invalid credentials", "username", username)
		return 0, "", ErrInvalidCredentials
	}

	token, err := svc.jwt.Generate(ctx, user.ID)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return 0, "", err
	}

	return user.ID, token, nil
}

// Update overwrites name, username and password of an existing user.
// The password is stored hashed.
func (svc *AccountService) Update(ctx context.Context, id int64, name, username, password string) (int64, error) {
	user, err := svc.reader.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get user", "id", id, "err", err)
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	hashedPassword, err := svc.hasher.Hash(password)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return 0, err
	}

	if err := svc.writer.Update(ctx, id, name, username, hashedPassword); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		logger.Log.Errorw("failed to update user", "id", id, "err", err)
		return 0, err
	}

	svc.afterWrite(ctx, models.UserUpdated, id, username)

	return id, nil
}

// Delete removes an existing user.
func (svc *AccountService) Delete(ctx context.Context, id int64) (int64, error) {
	user, err := svc.reader.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get user", "id", id, "err", err)
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	if err := svc.writer.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		logger.Log.Errorw("failed to delete user", "id", id, "err", err)
		return 0, err
	}

	svc.afterWrite(ctx, models.UserDeleted, id, user.Username)

	return id, nil
}

// Search returns page (1-indexed, models.UsersPerPage per page) of the users
// whose username contains term, and the number of all matches.
func (svc *AccountService) Search(ctx context.Context, term string, page int) ([]models.UserView, int, error) {
	matches, err := svc.searchAll(ctx, term)
	if err != nil {
		return nil, 0, err
	}
	if len(matches) == 0 {
		return nil, 0, ErrNoUsersFound
	}

	if page < 1 {
		page = 1
	}
	// Compare page counts before multiplying so huge pages cannot overflow.
	pages := (len(matches) + models.UsersPerPage - 1) / models.UsersPerPage
	if page-1 >= pages {
		return []models.UserView{}, len(matches), nil
	}
	start := (page - 1) * models.UsersPerPage
	end := min(start+models.UsersPerPage, len(matches))

	return matches[start:end], len(matches), nil
}

func (svc *AccountService) searchAll(ctx context.Context, term string) ([]models.UserView, error) {
	var cacheKey string
	if svc.cache != nil {
		cached, key, ok, err := svc.cache.Get(ctx, term)
		if err != nil {
			logger.Log.Warnw("search cache read failed", "term", term, "err", err)
		}
		if ok {
			return cached, nil
		}
		cacheKey = key
	}

	users, err := svc.reader.SearchByUsername(ctx, term)
	if err != nil {
		logger.Log.Errorw("failed to search users", "term", term, "err", err)
		return nil, err
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}

	// The key was fixed before the store read, so a fill that raced a write
	// lands under the generation that write already retired.
	if cacheKey != "" && len(views) > 0 {
		if err := svc.cache.Set(ctx, cacheKey, views); err != nil {
			logger.Log.Warnw("search cache write failed", "term", term, "err", err)
		}
	}

	return views, nil
}

// afterWrite drops cached searches and publishes the event.
func (svc *AccountService) afterWrite(ctx context.Context, event string, id int64, username string) {
	if svc.cache != nil {
		if err := svc.cache.Invalidate(ctx); err != nil {
			logger.Log.Warnw("search cache invalidation failed", "err", err)
		}
	}

	svc.publishEvent(ctx, models.UserEvent{
		Event:     event,
		UserID:    id,
		Username:  username,
		Timestamp: time.Now().Unix(),
	})
}

// publishEvent publishes a user event to Kafka.
func (svc *AccountService) publishEvent(ctx context.Context, evt models.UserEvent) {
	if svc.kafkaWriter == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "event", evt.Event, "user_id", evt.UserID)
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Errorw("Failed to marshal user event for Kafka", "event", evt.Event, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.UserID, 10)),
		Value: data,
	}

	if err := svc.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish user event to Kafka", "event", evt.Event, "user_id", evt.UserID, "error", err)
	} else {
		logger.Log.Infow("User event published to Kafka", "event", evt.Event, "user_id", evt.UserID)
	}
}

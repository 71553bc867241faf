package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "community_service/internal/lib/logger"
	"community_service/internal/lib/verification"
	"community_service/internal/models"
	"community_service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// dummyPassword is hashed once at startup and compared against when the
// account is missing or has no password hash, so the failure branches of
// Login cost the same as a real comparison.
const dummyPassword = "dummy-password-for-timing"

type UserSaver interface {
	SaveUser(ctx context.Context, u models.User) error
	ConsumeVerificationToken(ctx context.Context, token string) (userID string, err error)
	RotateVerificationToken(ctx context.Context, userID, token string) error
	UpdateLastSignedIn(ctx context.Context, userID string, at time.Time) error
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.EmailMessage) error
}

type SessionIssuer interface {
	Issue(userID, nickname, role string) (string, error)
}

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	publisher   Publisher
	sessions    SessionIssuer
	adminEmail  string
	baseURL     string
	dummyHash   []byte
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	publisher Publisher,
	sessions SessionIssuer,
	adminEmail string,
	baseURL string,
) *Auth {
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), bcrypt.DefaultCost)
	if err != nil {
		panic("failed to precompute dummy hash: " + err.Error())
	}

	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		publisher:   publisher,
		sessions:    sessions,
		adminEmail:  adminEmail,
		baseURL:     baseURL,
		dummyHash:   dummyHash,
	}
}

// Register creates an unverified account and queues the verification
// email. The email is dispatched only after the row is committed, and a
// dispatch failure never fails the registration: the account exists and
// the user can request a resend.
func (a *Auth) Register(ctx context.Context, email, password, nickname string) (string, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// * Роль назначается один раз при создании и больше не пересматривается.
	role := models.RoleUser
	if a.adminEmail != "" && email == a.adminEmail {
		role = models.RoleAdmin
	}

	loginMethod := "email"

	user := models.User{
		ID:                uuid.NewString(),
		Email:             &email,
		Nickname:          &nickname,
		LoginMethod:       &loginMethod,
		PassHash:          passHash,
		IsVerified:        false,
		VerificationToken: &token,
		Role:              role,
	}

	if err := a.usrSaver.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return "", ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.sendVerificationEmail(ctx, log, email, token)

	log.Info("user registered", slog.String("uid", user.ID))

	return user.ID, nil
}

// VerifyEmail consumes the token: a single conditional update flips the
// verified flag and clears the token, so a replayed token finds no match.
func (a *Auth) VerifyEmail(ctx context.Context, token string) error {
	const op = "auth.VerifyEmail"

	log := a.log.With(slog.String("op", op))

	userID, err := a.usrSaver.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("verification token not found")
			return ErrInvalidToken
		}

		log.Error("failed to consume verification token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.String("uid", userID))

	return nil
}

// ResendVerification rotates the token and re-sends the email for
// unverified accounts. Unknown and already-verified emails are treated
// as a no-op so the response never reveals whether the account exists.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("resend requested for unknown email")
			return nil
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		log.Info("resend requested for verified account", slog.String("uid", user.ID))
		return nil
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.RotateVerificationToken(ctx, user.ID, token); err != nil {
		// The account was verified (or removed) after the read above;
		// same no-op as if the read had seen it.
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("account no longer eligible for resend", slog.String("uid", user.ID))
			return nil
		}

		log.Error("failed to rotate verification token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.sendVerificationEmail(ctx, log, email, token)

	log.Info("verification email resent", slog.String("uid", user.ID))

	return nil
}

// Login checks the credentials and returns a session credential for the
// caller to set as a cookie. Unknown email, missing password hash and
// wrong password all map to the same ErrInvalidCredentials, with one
// bcrypt comparison on every path.
func (a *Auth) Login(ctx context.Context, email, password string) (string, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to get user", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err != nil || user.PassHash == nil {
		// Burn the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		log.Info("login failed: no matching account with a password")
		return "", models.User{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		log.Info("login attempt on unverified account", slog.String("uid", user.ID))
		return "", models.User{}, ErrEmailNotVerified
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", slog.String("uid", user.ID))
		return "", models.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := a.usrSaver.UpdateLastSignedIn(ctx, user.ID, now); err != nil {
		log.Error("failed to update last sign-in", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user.LastSignedIn = &now

	nickname := ""
	if user.Nickname != nil {
		nickname = *user.Nickname
	} else if user.Name != nil {
		nickname = *user.Name
	}

	credential, err := a.sessions.Issue(user.ID, nickname, user.Role)
	if err != nil {
		log.Error("failed to issue session credential", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uid", user.ID))

	return credential, user, nil
}

func (a *Auth) sendVerificationEmail(ctx context.Context, log *slog.Logger, email, token string) {
	link := verification.Link(a.baseURL, token)

	msg := models.EmailMessage{
		To:       email,
		Subject:  verification.EmailSubject,
		HTMLBody: verification.EmailBody(link),
	}

	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		log.Error("failed to queue verification email", sl.Err(err))
	}
}

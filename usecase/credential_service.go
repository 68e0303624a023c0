package usecase

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// Identity is what a successful authentication reveals about the account
type Identity struct {
	Mail string
	Name string
}

// CredentialService registers accounts and checks their credentials.
// Passwords arrive already digested by the caller.
type CredentialService struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewCredentialService creates a new credential service
func NewCredentialService(users repositories.UserRepository, logger *zap.Logger) *CredentialService {
	return &CredentialService{users: users, logger: logger}
}

// Register creates an account. Mail uniqueness is checked before name uniqueness.
func (s *CredentialService) Register(ctx context.Context, mail, name, passwordHash string) error {
	if mail == "" || name == "" || passwordHash == "" {
		return domain.ErrInvalidRequest
	}

	exists, err := s.users.ExistsByMail(ctx, mail)
	if err != nil {
		return domain.NewStoreError("find user by mail", err)
	}
	if exists {
		return domain.ErrDuplicateMail
	}

	exists, err = s.users.ExistsByName(ctx, name)
	if err != nil {
		return domain.NewStoreError("find user by name", err)
	}
	if exists {
		return domain.ErrDuplicateName
	}

	if err := s.users.Create(ctx, entities.NewUser(mail, name, passwordHash)); err != nil {
		// A concurrent registration won the race; the unique index reports which field.
		var dup *repositories.DuplicateKeyError
		if errors.As(err, &dup) {
			if dup.Field == "name" {
				return domain.ErrDuplicateName
			}
			return domain.ErrDuplicateMail
		}
		return domain.NewStoreError("create user", err)
	}

	s.logger.Info("User registered", zap.String("mail", mail), zap.String("name", name))
	return nil
}

// Authenticate checks passwordHash against the account registered under mail
func (s *CredentialService) Authenticate(ctx context.Context, mail, passwordHash string) (*Identity, error) {
	user, err := s.users.GetByMail(ctx, mail)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrNoSuchUser
		}
		return nil, domain.NewStoreError("find user", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(passwordHash)) != 1 {
		s.logger.Warn("Authentication failed", zap.String("mail", mail))
		return nil, domain.ErrWrongPassword
	}

	return &Identity{Mail: user.Mail, Name: user.Name}, nil
}

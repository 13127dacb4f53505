package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// MediatorDirectory определяет глобальный флаг медиатора по таблице mediators.
type MediatorDirectory struct {
	db *sqlx.DB
}

func NewMediatorDirectory(db *sqlx.DB) *MediatorDirectory {
	return &MediatorDirectory{db: db}
}

func (r *MediatorDirectory) Actor(ctx context.Context, id uuid.UUID) (entity.Actor, error) {
	var isMediator bool
	err := conn(ctx, r.db).GetContext(ctx, &isMediator,
		`SELECT EXISTS(SELECT 1 FROM mediators WHERE user_id = $1)`, id)
	if err != nil {
		return entity.Actor{}, apperror.Internal(err, "не удалось проверить медиатора")
	}
	return entity.Actor{ID: id, IsMediator: isMediator}, nil
}

// Grant добавляет пользователей в справочник медиаторов. Повторное добавление не ошибка.
func (r *MediatorDirectory) Grant(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		_, err := conn(ctx, r.db).ExecContext(ctx,
			`INSERT INTO mediators (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id)
		if err != nil {
			return apperror.Internal(err, "не удалось добавить медиатора")
		}
	}
	return nil
}

var _ repository.IdentityProvider = (*MediatorDirectory)(nil)

package entity

import "github.com/google/uuid"

// Actor: аутентифицированный пользователь. IsMediator — глобальная возможность,
// не зависящая от ролей в конкретных сделках.
type Actor struct {
	ID         uuid.UUID
	IsMediator bool
}

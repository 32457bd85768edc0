package world

import "errors"

// Ошибки мира. Классификация по errors.Is:
//   - неверный запрос: ErrOutOfBounds, ErrUnknownItem, ErrInvalidName, ErrInvalidSize
//   - отказ политики: ErrNoAccess, ErrBanned
//   - гонка: ErrAlreadyCollected, ErrAlreadyLocked
//   - повреждение данных: ErrCorrupt
var (
	ErrOutOfBounds      = errors.New("world: position out of bounds")
	ErrUnknownItem      = errors.New("world: unknown item")
	ErrInvalidName      = errors.New("world: invalid world name")
	ErrInvalidSize      = errors.New("world: invalid world size")
	ErrObjectNotFound   = errors.New("world: object not found")
	ErrNoAccess         = errors.New("world: no access")
	ErrBanned           = errors.New("world: player is banned")
	ErrAlreadyCollected = errors.New("world: object already collected")
	ErrAlreadyLocked    = errors.New("world: area already locked")
	ErrCorrupt          = errors.New("world: corrupt data")
)

// IsInvalidRequest сообщает, что ошибка вызвана некорректным запросом клиента
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrOutOfBounds) || errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidSize) ||
		errors.Is(err, ErrObjectNotFound)
}

// IsPolicyDenial сообщает, что запрос отклонён проверкой замков/доступа/банов
func IsPolicyDenial(err error) bool {
	return errors.Is(err, ErrNoAccess) || errors.Is(err, ErrBanned)
}

// IsRace сообщает, что запрос уже обработан другим участником
func IsRace(err error) bool {
	return errors.Is(err, ErrAlreadyCollected) || errors.Is(err, ErrAlreadyLocked)
}

package executor

import "errors"

// Ошибки executor'а.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotPending — job уже захвачен другим executor'ом или завершён.
	ErrJobNotPending = errors.New("job is not in pending status")

	// ErrEmptyCommand — команда job пуста после рендеринга.
	ErrEmptyCommand = errors.New("empty job command")

	// ErrExecutorStopped — executor остановлен.
	ErrExecutorStopped = errors.New("executor stopped")
)

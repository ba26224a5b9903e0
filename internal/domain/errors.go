package domain

import "errors"

var (
	// ErrStaleReference - событие ссылается на соединение, которого уже нет в реестре.
	// Ожидаемая гонка (позднее сообщение после удаления), а не сбой.
	ErrStaleReference = errors.New("stale connection reference")

	// ErrDuplicateConnect - повторное подключение с уже занятым ID. Баг транспорта.
	ErrDuplicateConnect = errors.New("duplicate connect")

	// ErrMalformedUpdate - в данных нет обязательных числовых полей.
	ErrMalformedUpdate = errors.New("malformed update")
)

package common

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation код ошибки PostgreSQL при нарушении уникального индекса.
const uniqueViolation = "23505"

// IsUniqueViolation проверяет, что ошибка вызвана нарушением уникальности.
// Возвращает имя нарушенного ограничения.
func IsUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

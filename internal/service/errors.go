package service

import (
	"errors"

	apperrors "chat_room/pkg/errors"
)

const (
	msgRoomNotFound    = "Chat room not found"
	msgMessageNotFound = "Message not found"
	msgAlreadyMember   = "User already in this room."
	msgNotMember       = "User doesn't belong in this room."
)

// storageError переводит ошибки репозиториев в таксономию apperrors.
// Все, что не распознано, считается системной ошибкой.
func storageError(err error, notFoundMessage string) error {
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrRoomNotFound),
		errors.Is(err, apperrors.ErrMessageNotFound),
		errors.Is(err, apperrors.ErrMemberNotFound):
		return apperrors.NotFound(err, notFoundMessage)
	case errors.Is(err, apperrors.ErrAlreadyMember):
		return apperrors.Conflict(err, msgAlreadyMember)
	case errors.Is(err, apperrors.ErrNotMember):
		return apperrors.Conflict(err, msgNotMember)
	default:
		return apperrors.System(err, "")
	}
}

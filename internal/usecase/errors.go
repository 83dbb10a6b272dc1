package usecase

import (
	"errors"

	"cafe/internal/apperr"
	repo "cafe/internal/repository"
)

// repositoryのエラーをapperrに寄せる。
// ErrNotFound/ErrConflict 以外は500として原因を持たせる。
func repoError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repo.ErrConflict):
		return apperr.Wrap(apperr.KindConflict, "status changed concurrently", err)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal("db error", err)
}

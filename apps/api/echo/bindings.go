package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type validatable interface {
	Validate() error
}

// bindAndValidate binds the request into `data` then validates it.
func bindAndValidate(ctx echo.Context, data validatable, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return data.Validate()
}

// indexParam reads the `:index` path param; a malformed index is a 404.
func indexParam(ctx echo.Context) (int, error) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil || index < 0 {
		return 0, errHttpNotFound
	}
	return index, nil
}

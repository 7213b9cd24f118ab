package echoapi

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"

	errFileRequired = "this field is required"
	errFileTooLarge = "file is too large"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=-field1,field2`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `?page=n`. Invalid numbers select the first page.
func bindPage(ctx echo.Context) core.Page {
	var page core.Page
	if err := echo.QueryParamsBinder(ctx).Int(pageParam, &page.Number).BindError(); err != nil {
		page.Number = 1
	}
	return page
}

// paramID parses the `:id` path param. Malformed ids are reported as not found.
func paramID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// formFile opens the uploaded file sent under field, refusing files larger than maxSize bytes.
// The caller must close the returned file.
func formFile(ctx echo.Context, field string, maxSize int64) (multipart.File, string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", core.NewValidationError(err, core.FieldError{Field: field, Error: errFileRequired})
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, "", core.NewValidationError(nil, core.FieldError{Field: field, Error: errFileTooLarge})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.Wrap(err, "opening uploaded file")
	}
	return f, fh.Filename, nil
}

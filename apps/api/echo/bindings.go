package echoapi

import (
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	orderingParam = "ordering"
	limitParam    = "limit"

	maxUploadSize int64 = 5 << 20 // 5 MiB
	errFileTooBig       = core.NewFieldError("file", "file must not exceed 5 MiB")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

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
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// queryLimit reads the `limit` query param, falling back to def when missing or invalid.
func queryLimit(ctx echo.Context, def, max int) int {
	n, err := strconv.Atoi(ctx.QueryParam(limitParam))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// IDsRequest binds repeated `id` query params (e.g. `?id=a&id=b`).
type IDsRequest struct {
	IDs []string `query:"id"`
}

// formFile reads the multipart file of field name.
func formFile(ctx echo.Context, name string) (string, []byte, error) {
	fh, err := ctx.FormFile(name)
	if err != nil {
		return "", nil, errMissingFile
	}
	if fh.Size > maxUploadSize {
		return "", nil, errFileTooBig
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return "", nil, errors.Wrap(err, "reading uploaded file")
	}
	if int64(len(content)) > maxUploadSize {
		return "", nil, errFileTooBig
	}
	return fh.Filename, content, nil
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type CountResponse struct {
	Count int `json:"count"`
}

package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-notifications/core"
)

var (
	orderingParam      = "ordering"
	olderThanDaysParam = "older_than_days"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
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

// bindOlderThanDays reads the older_than_days query param, def when missing.
func bindOlderThanDays(ctx echo.Context, def int) (int, error) {
	val := strings.TrimSpace(ctx.QueryParam(olderThanDaysParam))
	if val == "" {
		return def, nil
	}
	days, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: olderThanDaysParam, Error: "must be an integer"})
	}
	return days, nil
}

// bindIDs reads the repeated id query param, eg. ?id=a&id=b
func bindIDs(ctx echo.Context) []string {
	var ids []string
	for _, id := range ctx.QueryParams()["id"] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

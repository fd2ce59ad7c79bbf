package messages

import (
	"fmt"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"msgtree/internal/config"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/services"
)

const sortKeyCreatedDate = "created_date"

func sortOrder(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}

func validateMaxCount(maxCount *int) *validation.FieldRules {
	return validation.Field(maxCount,
		validation.Required,
		validation.Min(1),
		validation.Max(config.MaxPageSize),
	)
}

func validateFilters(f *services.MessageFilters) error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Username,
			validation.Length(0, config.MaxUsernameLength),
			validation.When(f.AuthMethod != "", validation.Required.Error("username and auth_method must be given together")),
		),
		validation.Field(&f.AuthMethod,
			validation.When(f.Username != "", validation.Required.Error("username and auth_method must be given together")),
		),
	)
}

func validatePageRequest(req *services.MessagePageRequest) error {
	if err := validateFilters(&req.MessageFilters); err != nil {
		return err
	}
	return validation.ValidateStruct(req, validateMaxCount(&req.MaxCount))
}

func validateListRequest(req *services.ListMessagesRequest) error {
	if err := validateFilters(&req.MessageFilters); err != nil {
		return err
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return fmt.Errorf("start_date must not be after end_date")
	}
	return validation.ValidateStruct(req, validateMaxCount(&req.MaxCount))
}

func toQuery(f services.MessageFilters, limit int, desc bool) *models.MessageQuery {
	return &models.MessageQuery{
		UserID:         f.UserID,
		Username:       f.Username,
		AuthMethod:     f.AuthMethod,
		APIClientID:    f.APIClientID,
		OnlyRoots:      f.OnlyRoots,
		IncludeDeleted: f.IncludeDeleted,
		Desc:           desc,
		Limit:          limit,
	}
}

func parseOptionalCursor(s string) (*models.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	c, err := models.ParseCursor(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// pagePlan is a page request resolved against its bounds.
// prev always maps to gt and the first row, next to lt and the last row.
type pagePlan struct {
	query    *models.MessageQuery
	gt, lt   *models.Cursor
	backward bool
}

func planPage(f services.MessageFilters, gt, lt *models.Cursor, limit int, desc bool) pagePlan {
	q := toQuery(f, limit, desc)
	q.After, q.Before = gt, lt

	p := pagePlan{query: q, gt: gt, lt: lt}

	// Ascending with only lt: scan down from it so the page ends next to the cursor
	if !desc && gt == nil && lt != nil {
		p.backward = true
		q.Desc = true
	}
	return p
}

func cursorToken(c models.Cursor) *string {
	s := c.String()
	return &s
}

// buildPage assembles the page and its continuation tokens from the rows of a planned query
func (p pagePlan) buildPage(rows []models.Message, desc bool) *models.MessagePage {
	if p.backward {
		slices.Reverse(rows)
	}

	page := &models.MessagePage{
		SortKey: sortKeyCreatedDate,
		Order:   sortOrder(desc),
		Items:   rows,
	}

	if len(rows) == 0 {
		if p.gt != nil {
			page.Prev = cursorToken(p.gt.TimestampOnly())
		}
		if p.lt != nil {
			page.Next = cursorToken(p.lt.TimestampOnly())
		}
		return page
	}

	// A full page without any bound is the first page: it only continues forward
	full := len(rows) == p.query.Limit
	bounded := p.gt != nil || p.lt != nil
	if p.gt != nil || (full && bounded) {
		page.Prev = cursorToken(rows[0].Cursor())
	}
	if p.lt != nil || full {
		page.Next = cursorToken(rows[len(rows)-1].Cursor())
	}
	return page
}

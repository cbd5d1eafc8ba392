package httpapi

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Параметры пагинации истории попыток
const (
	defaultPage    = 1
	defaultPerPage = 10
	maxPerPage     = 50
)

type paging struct {
	Page    int
	PerPage int
}

func (p paging) offset() int {
	return (p.Page - 1) * p.PerPage
}

type pageMeta struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// resolvePaging читает page и per_page. Некорректные значения заменяются значениями по умолчанию.
func resolvePaging(c *fiber.Ctx) paging {
	page := atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = defaultPage
	}

	perPage := atoiDefault(c.Query("per_page"), defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}

	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	// смещение (page-1)*perPage должно помещаться в int
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}

	return paging{Page: page, PerPage: perPage}
}

func buildMeta(p paging, total int) pageMeta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.PerPage - 1) / p.PerPage
	}

	return pageMeta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}

	return n
}

package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// orderSortColumns maps accepted orderBy values, API names and column
// names alike, to order table columns
var orderSortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"orderNumber":  "order_number",
	"customerName": "customer_name",
	"status":       "status",
	"total":        "total",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"order_number": "order_number",
}

// sortClause resolves a caller supplied sort against a column whitelist.
// Unknown fields fall back to fallback; anything but "asc" sorts descending.
func sortClause(field, dir string, columns map[string]string, fallback string) clause.OrderByColumn {
	column, ok := columns[strings.TrimSpace(field)]
	if !ok {
		column = fallback
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}

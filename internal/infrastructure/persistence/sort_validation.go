package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC. Anything else means DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if it is whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductRecordSortFields are the columns a product listing may be ordered by
var ProductRecordSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"price":      true,
	"confidence": true,
	"status":     true,
	"stock":      true,
}

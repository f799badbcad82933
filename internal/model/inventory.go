package model

import "strings"

// InventoryComponent is one part listed for a computer by the inventory API.
type InventoryComponent struct {
	Description   string  `json:"description"`
	ArticleNumber *string `json:"jtl_article_number"`
}

// ComputerInventory is the inventory API view of a finished computer.
type ComputerInventory struct {
	ArticleNumber *string              `json:"jtl_article_number"`
	ModelName     string               `json:"model_name"`
	Serial        string               `json:"customer_serial"`
	Components    []InventoryComponent `json:"components"`
}

// MissingArticleNumber reports whether an inventory value means "not mapped".
// The inventory service serializes missing values inconsistently.
func MissingArticleNumber(v *string) bool {
	if v == nil {
		return true
	}
	switch strings.TrimSpace(*v) {
	case "", "None", "null", "NULL":
		return true
	}
	return false
}

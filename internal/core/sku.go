package core

// skuPrefix namespaces content-item SKUs in the commerce backend. The
// backend's SKU uniqueness is the only lock against double product
// creation, so the derivation must stay pure and stable.
const skuPrefix = "article-"

// DeriveSKU maps a content item ID to its commerce product SKU.
// Deterministic: re-running sync can never produce a second product for
// the same item.
func DeriveSKU(contentItemID string) string {
	return skuPrefix + contentItemID
}

package domain

import "strings"

// KeySeparator joins the components of record identifiers. Owner ids,
// customer keys and product names must not contain it in a way that makes two
// identifiers collide; the constraint is documented, not enforced.
const KeySeparator = ":"

// CustomerKey canonicalizes a display name into the aggregation key.
// Whitespace-only input yields the empty string, which callers must reject.
func CustomerKey(rawName string) string {
	return strings.ToLower(strings.TrimSpace(rawName))
}

// ItemRecordID is the deterministic identity of an item record, one per
// (owner, customer, product).
func ItemRecordID(ownerID, customerKey, productName string) string {
	return ownerID + KeySeparator + customerKey + KeySeparator + productName
}

// PaymentRecordID is the deterministic identity of a payment record, one per
// (owner, customer).
func PaymentRecordID(ownerID, customerKey string) string {
	return ownerID + KeySeparator + customerKey
}

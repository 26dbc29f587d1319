package events

import (
	"strconv"

	"stakevault/crypto"
)

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatIdentity(id [20]byte) string {
	return crypto.FormatIdentity(id)
}

func formatCustody(id [20]byte) string {
	return crypto.FromArray(crypto.CustodyPrefix, id).String()
}

package ws

import (
	"math/big"

	"github.com/avgrelay/relay/internal/procstat"
)

// StatusPayload is the body of GET /api/status. Average marshals as a bare
// JSON number of any magnitude.
type StatusPayload struct {
	Average   *big.Int        `json:"average"`
	Senders   int             `json:"senders"`
	Listeners int             `json:"listeners"`
	Process   *procstat.Stats `json:"process,omitempty"`
}

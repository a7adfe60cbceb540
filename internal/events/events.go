// Package events publishes pool-formed notifications to downstream consumers
// (dispatch, operator tooling). All publishers emit the same JSON document.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/ecopickup/pooling/internal/domain"
)

// PoolFormedType names the event on every transport.
const PoolFormedType = "pool.formed"

func encode(ev domain.PoolFormed) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", PoolFormedType, err)
	}
	return body, nil
}

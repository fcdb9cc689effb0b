//go:build js

package pipeline

import "errors"

func marshalEnrichedParquet([]EnrichedRow) ([]byte, error) {
	return nil, errors.New("parquet output is not available in js builds; use csv or xlsx")
}

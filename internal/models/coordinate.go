package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// Coordinate is a latitude or longitude in degrees. The backend serializes
// decimals as strings ("6.5244000"), so both JSON numbers and numeric strings
// are accepted. It always encodes as a number.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", data, err)
	}
	*c = Coordinate(f)
	return nil
}

func (c Coordinate) Float() float64 { return float64(c) }

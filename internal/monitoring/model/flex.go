package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexFloat tolerates numbers arriving as JSON numbers, numeric strings,
// null, or garbage. Anything unparseable decodes to zero instead of failing
// the whole report.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat(parseFlexibleNumber(data))
	return nil
}

// FlexInt is the integer counterpart of FlexFloat.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	*i = FlexInt(parseFlexibleNumber(data))
	return nil
}

func parseFlexibleNumber(data []byte) float64 {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return n
		}
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

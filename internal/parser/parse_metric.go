package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/motorpool/extension/v2/internal/util"
)

// ParseMetric parses a host-pushed metric into a neutral MetricPoint.
//
// each metric will come through as a string array
// 0 = bucket name
// 1 = measurement name
// n with "tag" prefix = tag name
// n with "field" prefix = field
// tag and field values use "::" separator
func (p *Service) ParseMetric(data []string) (MetricPoint, error) {
	var point MetricPoint

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 2 {
		return point, fmt.Errorf("metric expects bucket and measurement, got %d args", len(data))
	}

	point.Bucket = data[0]
	point.Measurement = data[1]
	point.Tags = map[string]string{}
	point.Fields = map[string]any{}

	// add tags
	for _, tag := range data[2:] {
		if !strings.HasPrefix(tag, "tag::") {
			continue
		}
		parts := strings.Split(tag, "::")
		if len(parts) >= 3 {
			point.Tags[parts[1]] = parts[2]
		}
	}

	// add fields
	for _, field := range data[2:] {
		if !strings.HasPrefix(field, "field::") {
			continue
		}
		parts := strings.Split(field, "::")
		if len(parts) < 4 {
			continue
		}
		fieldType := parts[1]
		fieldName := parts[2]
		fieldValue := parts[3]

		switch fieldType {
		case "string":
			point.Fields[fieldName] = fieldValue
		case "int":
			intVal, err := strconv.Atoi(fieldValue)
			if err != nil {
				return point, fmt.Errorf("error converting field value '%s' to int: %w", fieldValue, err)
			}
			point.Fields[fieldName] = intVal
		case "float":
			floatVal, err := strconv.ParseFloat(fieldValue, 64)
			if err != nil {
				return point, fmt.Errorf("error converting field value '%s' to float: %w", fieldValue, err)
			}
			point.Fields[fieldName] = floatVal
		}
	}

	return point, nil
}

// Package widgets turns arbitrary JSON payloads into the fixed set of
// canvas widget schemas. Formatting never panics and never returns a Go
// error: a payload that does not fit the requested shape produces an
// explicit error object the reasoning step can react to.
package widgets

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// Shape is the classification tag assigned to a payload before any
// formatter runs. Classification is separate from rendering so each can
// be tested on its own.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeTable              // list of objects
	ShapeBarChart           // flat object with all-numeric values
	ShapePropertyTable      // any other object
)

func (s Shape) String() string {
	switch s {
	case ShapeTable:
		return "table"
	case ShapeBarChart:
		return "bar_chart"
	case ShapePropertyTable:
		return "property_table"
	default:
		return "unrecognized"
	}
}

// Classify tags a decoded JSON value by shape.
func Classify(v interface{}) Shape {
	switch t := v.(type) {
	case []interface{}:
		if len(t) == 0 {
			return ShapeUnrecognized
		}
		if _, ok := t[0].(map[string]interface{}); ok {
			return ShapeTable
		}
		return ShapeUnrecognized
	case map[string]interface{}:
		if len(t) == 0 {
			return ShapeUnrecognized
		}
		for _, val := range t {
			if !isNumeric(val) {
				return ShapePropertyTable
			}
		}
		return ShapeBarChart
	default:
		return ShapeUnrecognized
	}
}

// Unwrap strips common list envelopes: {"items": [...]} and
// {"data": [...]} yield the inner list, anything else passes through.
func Unwrap(v interface{}) interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for _, key := range []string{"items", "data"} {
		if inner, ok := obj[key].([]interface{}); ok {
			return inner
		}
	}
	return v
}

// Format renders data as the requested component kind. The result is
// either {component, data, config} or {error}.
func Format(widgetType string, data interface{}, config map[string]interface{}) map[string]interface{} {
	if config == nil {
		config = map[string]interface{}{}
	}
	data = Unwrap(data)

	switch widgetType {
	case models.ComponentTable:
		return formatTable(data, config)
	case models.ComponentBarChart, models.ComponentPieChart:
		return formatBarOrPie(widgetType, data, config)
	case models.ComponentLineChart:
		return formatLine(data, config)
	case models.ComponentMetricCard:
		return formatMetric(data, config)
	default:
		return errorResult(fmt.Sprintf("unknown widget type %q", widgetType))
	}
}

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func formatTable(data interface{}, config map[string]interface{}) map[string]interface{} {
	switch t := data.(type) {
	case []interface{}:
		if len(t) == 0 {
			return errorResult("cannot format an empty list as a table")
		}
		first, ok := t[0].(map[string]interface{})
		if !ok {
			return errorResult("table rows must be objects")
		}
		columns := sortedKeys(first)
		rows := make([][]interface{}, 0, len(t))
		for _, item := range t {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return errorResult("table rows must be objects")
			}
			row := make([]interface{}, len(columns))
			for i, col := range columns {
				row[i] = obj[col]
			}
			rows = append(rows, row)
		}
		return map[string]interface{}{
			"component": models.ComponentTable,
			"data":      map[string]interface{}{"columns": columns, "rows": rows},
			"config":    config,
		}

	case map[string]interface{}:
		// Single object renders as a property/value table.
		columns := []string{"property", "value"}
		rows := make([][]interface{}, 0, len(t))
		for _, k := range sortedKeys(t) {
			rows = append(rows, []interface{}{k, t[k]})
		}
		return map[string]interface{}{
			"component": models.ComponentTable,
			"data":      map[string]interface{}{"columns": columns, "rows": rows},
			"config":    config,
		}

	default:
		return errorResult("table data must be a list of objects or an object")
	}
}

func formatBarOrPie(component string, data interface{}, config map[string]interface{}) map[string]interface{} {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return errorResult("chart data must be a flat object of numeric values")
	}
	if len(obj) == 0 {
		return errorResult("chart data is empty")
	}

	labels := sortedKeys(obj)
	values := make([]interface{}, len(labels))
	for i, k := range labels {
		if !isNumeric(obj[k]) {
			return errorResult(fmt.Sprintf("chart value for %q is not numeric", k))
		}
		values[i] = obj[k]
	}
	return map[string]interface{}{
		"component": component,
		"data":      map[string]interface{}{"labels": labels, "values": values},
		"config":    config,
	}
}

func formatLine(data interface{}, config map[string]interface{}) map[string]interface{} {
	list, ok := data.([]interface{})
	if !ok || len(list) == 0 {
		return errorResult("line chart data must be a non-empty list of objects")
	}
	first, ok := list[0].(map[string]interface{})
	if !ok {
		return errorResult("line chart points must be objects")
	}

	keys := sortedKeys(first)

	valueField, _ := config["value_field"].(string)
	if valueField == "" {
		for _, k := range keys {
			if isNumeric(first[k]) {
				valueField = k
				break
			}
		}
	}
	if valueField == "" {
		return errorResult("no numeric field found for line chart values")
	}

	labelField, _ := config["label_field"].(string)
	if labelField == "" {
		labelField = keys[0]
	}

	labels := make([]interface{}, 0, len(list))
	values := make([]interface{}, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return errorResult("line chart points must be objects")
		}
		labels = append(labels, obj[labelField])
		values = append(values, obj[valueField])
	}
	return map[string]interface{}{
		"component": models.ComponentLineChart,
		"data":      map[string]interface{}{"labels": labels, "values": values},
		"config":    config,
	}
}

func formatMetric(data interface{}, config map[string]interface{}) map[string]interface{} {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return errorResult("metric data must be an object")
	}
	if len(obj) == 0 {
		return errorResult("metric data is empty")
	}

	field, _ := config["value_field"].(string)
	if field == "" {
		field = sortedKeys(obj)[0]
	}
	value, ok := obj[field]
	if !ok {
		return errorResult(fmt.Sprintf("metric field %q not present", field))
	}
	return map[string]interface{}{
		"component": models.ComponentMetricCard,
		"data":      map[string]interface{}{"label": field, "value": value},
		"config":    config,
	}
}

// ── Grid Placement ──────────────────────────────────────────

// GridColumns is the canvas width in grid units.
const GridColumns = 12

// Grid places widgets left to right, wrapping to a new row when a
// widget would cross the right edge. A widget is never clamped; it
// wraps whole.
type Grid struct {
	col       int
	row       int
	rowHeight int
}

func NewGrid() *Grid {
	return &Grid{col: 1, row: 1}
}

// Place reserves a slot for a widget of the given size and advances
// the cursor past it.
func (g *Grid) Place(width, height int) models.WidgetPosition {
	if width > GridColumns {
		width = GridColumns
	}
	if g.col+width-1 > GridColumns {
		g.col = 1
		g.row += g.rowHeight
		g.rowHeight = 0
	}
	pos := models.WidgetPosition{Column: g.col, Row: g.row, Width: width, Height: height}
	g.col += width
	if height > g.rowHeight {
		g.rowHeight = height
	}
	return pos
}

// NewWidget wraps a formatted result into a positioned Widget.
func NewWidget(component string, position models.WidgetPosition, data, config map[string]interface{}) models.Widget {
	if data == nil {
		data = map[string]interface{}{}
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	return models.Widget{
		ID:        uuid.NewString(),
		Component: component,
		Position:  position,
		Data:      data,
		Config:    config,
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int64, json.Number:
		return true
	default:
		return false
	}
}

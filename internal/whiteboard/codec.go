// Package whiteboard implements the session whiteboard core: normalization of
// the two client wire encodings into canonical operations, the timestamp-ordered
// merge of operation batches, and idempotent client-side replay.
package whiteboard

import (
	"fmt"
	"strconv"
	"strings"

	"peer-service/internal/models"
)

// Defaults applied when a wire field is missing or unparseable. Decoding never
// fails: a bad field degrades to its default so one malformed packet cannot
// break a shared session.
const (
	DefaultStrokeWidth = 3
	DefaultFontSize    = 20
	DefaultColor       = "#000000"
)

// Encoding selects the wire shape produced for a client. The mobile client
// speaks delimited strings and ARGB integers; the web client speaks native
// arrays and hex colors.
type Encoding string

const (
	EncodingNative    Encoding = "native"
	EncodingDelimited Encoding = "delimited"
)

// ParseEncoding maps a client-declared format to an Encoding, defaulting to
// native.
func ParseEncoding(s string) Encoding {
	if strings.EqualFold(s, string(EncodingDelimited)) {
		return EncodingDelimited
	}
	return EncodingNative
}

// WireOperation is the loosely-typed operation envelope shared by both client
// encodings. Data carries the per-type payload whose field shapes differ
// between clients.
type WireOperation struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
	UserID    string         `json:"user_id"`
}

// DecodeOperation normalizes a wire operation from either client encoding into
// the canonical form. It is total: it never fails, whatever the payload holds.
func DecodeOperation(w WireOperation) models.Operation {
	op := models.Operation{
		ID:        w.ID,
		Type:      strings.ToLower(strings.TrimSpace(w.Type)),
		Timestamp: w.Timestamp,
		UserID:    w.UserID,
	}

	data := w.Data
	if data == nil {
		data = map[string]any{}
	}

	switch op.Type {
	case models.OpDraw:
		op.Points = DecodePoints(data["points"])
		op.Color = DecodeColor(data["color"])
		op.StrokeWidth = DecodeNumber(field(data, "strokeWidth", "stroke_width"), DefaultStrokeWidth)
	case models.OpText:
		op.Text = asString(data["text"])
		pos := decodePosition(data)
		op.Position = &pos
		op.FontSize = DecodeNumber(field(data, "fontSize", "font_size"), DefaultFontSize)
		op.Color = DecodeColor(data["color"])
	case models.OpErase:
		op.Targets = DecodeTargets(field(data, "targets", "target_ids"))
	case models.OpClear:
		// no payload
	}

	return op
}

// EncodeOperation renders a canonical operation in the requested client
// encoding.
func EncodeOperation(op models.Operation, enc Encoding) WireOperation {
	w := WireOperation{
		ID:        op.ID,
		Type:      op.Type,
		Data:      map[string]any{},
		Timestamp: op.Timestamp,
		UserID:    op.UserID,
	}

	switch op.Type {
	case models.OpDraw:
		if enc == EncodingDelimited {
			w.Data["points"] = encodePointsString(op.Points)
			w.Data["color"] = EncodeColorARGB(op.Color)
		} else {
			w.Data["points"] = encodePointsNative(op.Points)
			w.Data["color"] = op.Color
		}
		w.Data["strokeWidth"] = op.StrokeWidth
	case models.OpText:
		w.Data["text"] = op.Text
		pos := models.Point{}
		if op.Position != nil {
			pos = *op.Position
		}
		if enc == EncodingDelimited {
			w.Data["position"] = formatFloat(pos.X) + "," + formatFloat(pos.Y)
			w.Data["color"] = EncodeColorARGB(op.Color)
		} else {
			w.Data["position"] = map[string]any{"x": pos.X, "y": pos.Y}
			w.Data["color"] = op.Color
		}
		w.Data["fontSize"] = op.FontSize
	case models.OpErase:
		if enc == EncodingDelimited {
			w.Data["targets"] = strings.Join(op.Targets, ",")
		} else {
			w.Data["targets"] = op.Targets
		}
	}

	return w
}

// DecodePoints accepts either the delimited "x1,y1;x2,y2" string form or a
// native sequence of {x,y} records. Malformed segments decode to the origin
// rather than dropping the stroke.
func DecodePoints(v any) []models.Point {
	switch points := v.(type) {
	case string:
		if strings.TrimSpace(points) == "" {
			return nil
		}
		segments := strings.Split(points, ";")
		out := make([]models.Point, 0, len(segments))
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			var p models.Point
			if xy := strings.SplitN(seg, ",", 2); len(xy) == 2 {
				p.X = DecodeNumber(xy[0], 0)
				p.Y = DecodeNumber(xy[1], 0)
			}
			out = append(out, p)
		}
		return out
	case []any:
		out := make([]models.Point, 0, len(points))
		for _, item := range points {
			out = append(out, decodePoint(item))
		}
		return out
	default:
		return nil
	}
}

func decodePoint(v any) models.Point {
	switch item := v.(type) {
	case map[string]any:
		return models.Point{
			X: DecodeNumber(item["x"], 0),
			Y: DecodeNumber(item["y"], 0),
		}
	case []any:
		var p models.Point
		if len(item) > 0 {
			p.X = DecodeNumber(item[0], 0)
		}
		if len(item) > 1 {
			p.Y = DecodeNumber(item[1], 0)
		}
		return p
	case string:
		var p models.Point
		if xy := strings.SplitN(item, ",", 2); len(xy) == 2 {
			p.X = DecodeNumber(xy[0], 0)
			p.Y = DecodeNumber(xy[1], 0)
		}
		return p
	default:
		return models.Point{}
	}
}

func decodePosition(data map[string]any) models.Point {
	if pos, ok := data["position"]; ok && pos != nil {
		return decodePoint(pos)
	}
	return models.Point{
		X: DecodeNumber(data["x"], 0),
		Y: DecodeNumber(data["y"], 0),
	}
}

// DecodeColor normalizes either a signed 32-bit ARGB integer (alpha stripped)
// or a hex string into "#rrggbb". Numeric strings are treated as the integer
// form before the string form.
func DecodeColor(v any) string {
	switch color := v.(type) {
	case float64:
		return maskRGB(int64(color))
	case int:
		return maskRGB(int64(color))
	case int64:
		return maskRGB(color)
	case string:
		trimmed := strings.TrimSpace(color)
		if trimmed == "" {
			return DefaultColor
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return maskRGB(n)
		}
		hex := strings.ToLower(strings.TrimPrefix(trimmed, "#"))
		if len(hex) == 8 {
			// #aarrggbb: alpha channel ignored
			hex = hex[2:]
		}
		if len(hex) == 6 && isHex(hex) {
			return "#" + hex
		}
		return DefaultColor
	default:
		return DefaultColor
	}
}

// EncodeColorARGB converts a "#rrggbb" string to the signed 32-bit ARGB form
// with a fully opaque alpha channel.
func EncodeColorARGB(hex string) int32 {
	trimmed := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
	rgb, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil || len(trimmed) != 6 {
		rgb = 0
	}
	return int32(uint32(0xff)<<24 | uint32(rgb&0xffffff))
}

func maskRGB(v int64) string {
	return fmt.Sprintf("#%06x", uint32(v)&0xffffff)
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// DecodeNumber coerces native numbers and numeric strings, falling back to def
// when unparseable.
func DecodeNumber(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
		return def
	default:
		return def
	}
}

// DecodeTargets accepts a comma-joined string or a native sequence of ids and
// returns the deduplicated target list in first-seen order.
func DecodeTargets(v any) []string {
	var raw []string
	switch targets := v.(type) {
	case string:
		raw = strings.Split(targets, ",")
	case []any:
		raw = make([]string, 0, len(targets))
		for _, t := range targets {
			raw = append(raw, asString(t))
		}
	case []string:
		raw = targets
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// field returns the first key present in data, so both clients' field
// spellings resolve to the same value.
func field(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return formatFloat(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func encodePointsString(points []models.Point) string {
	segments := make([]string, 0, len(points))
	for _, p := range points {
		segments = append(segments, formatFloat(p.X)+","+formatFloat(p.Y))
	}
	return strings.Join(segments, ";")
}

func encodePointsNative(points []models.Point) []map[string]any {
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{"x": p.X, "y": p.Y})
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

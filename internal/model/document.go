package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is the vector-index projection of a UnifiedEvent: a flat
// human-readable text for embedding plus filterable string metadata.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// BuildDocument projects an event into its document form.
//
// Text and Metadata are deterministic for a given event (detail keys are
// emitted in sorted order). The ID is type_unixts_texthash_randomtag;
// the random tag guarantees that re-emitting the same logical event
// produces a distinct ID, since events are append-only and never deduped
// by content.
func BuildDocument(ev UnifiedEvent) Document {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("Event Type: %s", ev.Type),
		fmt.Sprintf("Timestamp: %s", ev.Timestamp.UTC().Format(time.RFC3339)),
	)
	for _, k := range sortedKeys(ev.Details) {
		lines = append(lines, fmt.Sprintf("%s: %s", k, flattenValue(ev.Details[k])))
	}
	if len(ev.Metadata) > 0 {
		lines = append(lines, "Metadata:")
		keys := make([]string, 0, len(ev.Metadata))
		for k := range ev.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s: %s", k, ev.Metadata[k]))
		}
	}
	text := strings.Join(lines, "\n")

	meta := map[string]string{
		"type":      string(ev.Type),
		"timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
	}
	for k, v := range ev.Metadata {
		meta[k] = v
	}

	h := fnv.New32a()
	h.Write([]byte(text))

	// 32 bits of uuid entropy keep same-microsecond re-emissions apart.
	u := uuid.New()
	tag := hex.EncodeToString(u[:4])

	return Document{
		ID:       fmt.Sprintf("%s_%d_%08x_%s", ev.Type, ev.Timestamp.Unix(), h.Sum32(), tag),
		Text:     text,
		Metadata: meta,
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flattenValue renders a detail value on one line. Nested maps and
// lists are stringified as compact JSON so the text stays line-oriented.
func flattenValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64, float32, int, int64, uint64, bool:
		return fmt.Sprintf("%v", t)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/parsly"
)

// RenderPrompt substitutes ${key} placeholders in a prompt template with
// values from the supplied inputs.  Nested keys use dot notation.  A
// placeholder naming an absent key renders empty; malformed placeholders are
// kept verbatim.
func RenderPrompt(template string, inputs map[string]interface{}) string {
	if !strings.Contains(template, "${") {
		return template
	}
	var out strings.Builder
	cursor := parsly.NewCursor("", []byte(template), 0)
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(placeholderToken, textToken)
		switch matched.Code {
		case placeholderToken.Code:
			fragment := matched.Text(cursor)
			key := fragment[2 : len(fragment)-1]
			out.WriteString(stringify(resolve(inputs, key)))
		case textToken.Code:
			out.WriteString(matched.Text(cursor))
		default:
			return out.String()
		}
	}
	return out.String()
}

func resolve(inputs map[string]interface{}, key string) interface{} {
	parts := strings.Split(key, ".")
	var value interface{} = inputs
	for _, part := range parts {
		holder, ok := value.(map[string]interface{})
		if !ok {
			return nil
		}
		value = holder[part]
	}
	return value
}

func stringify(value interface{}) string {
	switch actual := value.(type) {
	case nil:
		return ""
	case string:
		return actual
	case float64, float32, int, int32, int64, uint, uint64, bool:
		return fmt.Sprintf("%v", actual)
	default:
		data, err := json.Marshal(actual)
		if err != nil {
			return fmt.Sprintf("%v", actual)
		}
		return string(data)
	}
}

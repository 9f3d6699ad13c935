package audit

// redactedFields are detail-map keys whose values must never reach the audit log,
// per "the log MUST NOT contain tokens, secrets, or payload bytes".
var redactedFields = map[string]bool{
	"jwt_token": true,
	"token":     true,
	"secret":    true,
	"password":  true,
}

const redactedPlaceholder = "***"

// Redact returns a shallow copy of details with every sensitive field's value replaced by
// "***". The input map is not mutated. Nested maps are redacted recursively.
func Redact(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if redactedFields[k] {
			out[k] = redactedPlaceholder
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
